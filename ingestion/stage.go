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

package ingestion

import (
	"github.com/poiesic/hnindex/core"
)

// Stage is a state in the per-item state machine:
// Fetched -> Extracted -> Chunked -> Embedded -> Upserted -> Marked.
type Stage int

const (
	StageFetched Stage = iota
	StageExtracted
	StageChunked
	StageEmbedded
	StageUpserted
	StageMarked
)

var stageNames = [...]string{
	StageFetched:   "fetched",
	StageExtracted: "extracted",
	StageChunked:   "chunked",
	StageEmbedded:  "embedded",
	StageUpserted:  "upserted",
	StageMarked:    "marked",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// step names the transition out of s, used to label failures.
func (s Stage) step() string {
	switch s {
	case StageFetched:
		return "extract"
	case StageExtracted:
		return "chunk"
	case StageChunked:
		return "embed"
	case StageEmbedded:
		return "upsert"
	case StageUpserted:
		return "mark"
	default:
		return "none"
	}
}

// ItemResult is the outcome of one item's pipeline.
type ItemResult struct {
	ItemID  core.ID
	Reached Stage // Last state reached
	Vectors int   // Vectors upserted, set once Reached >= StageUpserted
	Err     error // Why the item stopped short of StageMarked
}

// Succeeded reports whether the item was upserted and marked processed.
func (r ItemResult) Succeeded() bool {
	return r.Err == nil && r.Reached == StageMarked
}

// FailedStep names the transition that failed, or "" on success.
func (r ItemResult) FailedStep() string {
	if r.Err == nil {
		return ""
	}
	return r.Reached.step()
}
