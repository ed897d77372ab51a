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


package storage

import (
	"fmt"

	"github.com/poiesic/hnindex/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	var id core.ID
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalProcessedMarker serializes a ProcessedMarker to bytes.
func MarshalProcessedMarker(marker *core.ProcessedMarker) []byte {
	buf := make([]byte, core.ProcessedMarkerMUS.Size(*marker))
	core.ProcessedMarkerMUS.Marshal(*marker, buf)
	return buf
}

// UnmarshalProcessedMarker deserializes a ProcessedMarker from bytes.
func UnmarshalProcessedMarker(data []byte) (*core.ProcessedMarker, error) {
	marker, _, err := core.ProcessedMarkerMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &marker, nil
}

// MarshalEmbeddedVector serializes an EmbeddedVector to bytes.
func MarshalEmbeddedVector(vector *core.EmbeddedVector) []byte {
	buf := make([]byte, core.EmbeddedVectorMUS.Size(*vector))
	core.EmbeddedVectorMUS.Marshal(*vector, buf)
	return buf
}

// UnmarshalEmbeddedVector deserializes an EmbeddedVector from bytes.
func UnmarshalEmbeddedVector(data []byte) (*core.EmbeddedVector, error) {
	vector, _, err := core.EmbeddedVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &vector, nil
}

// MarshalRunRecord serializes a RunRecord to bytes.
func MarshalRunRecord(run *core.RunRecord) []byte {
	buf := make([]byte, core.RunRecordMUS.Size(*run))
	core.RunRecordMUS.Marshal(*run, buf)
	return buf
}

// UnmarshalRunRecord deserializes a RunRecord from bytes.
func UnmarshalRunRecord(data []byte) (*core.RunRecord, error) {
	run, _, err := core.RunRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &run, nil
}
