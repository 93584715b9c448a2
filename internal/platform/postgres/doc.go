// Package postgres provides a PostgreSQL task store for deployments where
// the queue should live in a shared database instead of a local file.
// Claims use FOR UPDATE SKIP LOCKED so concurrent consumers never receive
// the same task.
package postgres
