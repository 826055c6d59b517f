// Package store persists committed picks and session snapshots to PostgreSQL.
//
// Writes are asynchronous and batched with pgx. In-memory draft state is
// authoritative for turn correctness; the store exists for durability and
// audit, so database failures are retried with backoff and never block or
// roll back a commit.
//
// Picks are append-only (ON CONFLICT DO NOTHING); session snapshots upsert
// with last-write-wins on updated_at.
package store
