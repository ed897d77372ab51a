// Package sqlite provides a relational ledger backed by modernc.org/sqlite.
//
// The ledger is a single processed_items table keyed by item id. Marking an
// item uses INSERT ... ON CONFLICT DO NOTHING inside a transaction, so a
// duplicate mark is a no-op and a failed mark is rolled back. Each call
// acquires its own connection from the pool and releases it before
// returning.
package sqlite
