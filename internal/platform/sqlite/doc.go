// Package sqlite provides the default durable task store, a single SQLite
// database file on local disk.
//
// The database runs in WAL mode with one open connection. Claims run in
// IMMEDIATE transactions so that two processes sharing the file never
// claim the same task.
package sqlite
