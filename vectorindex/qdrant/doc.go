// Package qdrant implements vectorindex.Index on a Qdrant server over gRPC.
//
// Each index name maps to one collection. Qdrant point ids must be unsigned
// integers or UUIDs, so points are keyed by core.PointID of the vector id and
// the original "{item_id}-{chunk_index}" id travels in the payload alongside
// the chunk metadata. Re-upserting a chunk therefore overwrites its point.
package qdrant
