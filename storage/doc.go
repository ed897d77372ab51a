// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for hnindex.
//
// This package defines the repository interfaces the ingestion pipeline
// depends on, so the ledger can live in BadgerDB or SQLite without the
// pipeline knowing which.
//
// # Architecture
//
//   - LedgerRepository: the durable set of processed item ids
//   - RunRepository: the record of the most recent pipeline run
//
// Two backends implement LedgerRepository:
//
//	ledger, err := badger.NewLedgerRepository(backend)   // storage/badger
//	ledger, err := sqlite.Open(ctx, "/path/to/ledger.db") // storage/sqlite
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Failure semantics
//
// Read failures wrap ErrStoreUnavailable. Write failures wrap ErrStoreWrite
// and are rolled back before returning, so other readers never observe a
// partial write.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
