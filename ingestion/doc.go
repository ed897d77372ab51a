// Package ingestion provides the controller that moves Hacker News stories
// into the vector index.
//
// A run loads the processed-id ledger, lists candidate ids from the feed,
// keeps those not yet processed in feed order, and resolves their details
// until the configured number of items is reached. Each item then moves
// through a fixed sequence of states:
//
//	Fetched -> Extracted -> Chunked -> Embedded -> Upserted -> Marked
//
// A failed transition stops that item only. Its vectors are either all
// upserted or the item is not marked, and the ledger is written strictly
// after the upsert succeeds. A crash between the two causes the next run to
// upsert the same vector ids again, which overwrites rather than duplicates.
//
// Items are processed on an ants worker pool. The default pool size of one
// keeps processing sequential.
package ingestion
