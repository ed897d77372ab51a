// Package vectorindex defines the vector index capability used by the
// ingestion pipeline and the searcher.
//
// Two implementations exist: vectorindex/qdrant talks to a Qdrant server over
// gRPC, and storage/badger.VectorIndex keeps vectors in the local BadgerDB
// database for single-machine use and tests.
package vectorindex
