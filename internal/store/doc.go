// Package store holds the database plumbing shared by the SQL-backed task
// stores: the DBTX abstraction, common store errors and transaction
// helpers.
package store
