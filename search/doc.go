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

// Package search retrieves ingested article chunks for a natural language query.
//
// The query is embedded with the same embedder used at ingestion time and
// matched against the vector index. Chunks whose text or title contains every
// non stop-word of the query get a verbatim boost before the final ranking.
// Each result carries the item id, title, url and chunk text stored with its
// vector, so no further lookup is needed to display it.
package search
