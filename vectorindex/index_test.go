package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/hnindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	batches [][]core.EmbeddedVector
	failOn  int // 1-based batch number that fails, 0 for never
}

func (r *recordingIndex) EnsureIndex(ctx context.Context, spec Spec) error { return nil }

func (r *recordingIndex) Upsert(ctx context.Context, name string, records []core.EmbeddedVector) error {
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return errors.New("boom")
	}
	r.batches = append(r.batches, records)
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]core.SearchHit, error) {
	return nil, nil
}

func (r *recordingIndex) Close() error { return nil }

func makeRecords(n int) []core.EmbeddedVector {
	out := make([]core.EmbeddedVector, n)
	for i := range out {
		out[i] = core.EmbeddedVector{ID: core.VectorID(1, i), Values: []float32{float32(i)}}
	}
	return out
}

func TestUpsertBatches_SplitsRecords(t *testing.T) {
	idx := &recordingIndex{}
	written, err := UpsertBatches(context.Background(), idx, "hn", makeRecords(5), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, written)
	require.Len(t, idx.batches, 3)
	assert.Len(t, idx.batches[0], 2)
	assert.Len(t, idx.batches[1], 2)
	assert.Len(t, idx.batches[2], 1)
}

func TestUpsertBatches_StopsOnFailure(t *testing.T) {
	idx := &recordingIndex{failOn: 2}
	written, err := UpsertBatches(context.Background(), idx, "hn", makeRecords(5), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexWrite)
	assert.Equal(t, 2, written)
	assert.Len(t, idx.batches, 1)
}

func TestUpsertBatches_DefaultBatchSize(t *testing.T) {
	idx := &recordingIndex{}
	written, err := UpsertBatches(context.Background(), idx, "hn", makeRecords(DefaultBatchSize+1), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize+1, written)
	assert.Len(t, idx.batches, 2)
}

func TestUpsertBatches_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := &recordingIndex{}
	written, err := UpsertBatches(ctx, idx, "hn", makeRecords(3), 2)
	assert.ErrorIs(t, err, ErrIndexWrite)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, written)
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"valid", Spec{Name: "hn", Dimension: 768, Metric: Cosine}, false},
		{"default metric", Spec{Name: "hn", Dimension: 3}, false},
		{"missing name", Spec{Dimension: 3, Metric: Dot}, true},
		{"zero dimension", Spec{Name: "hn", Metric: Dot}, true},
		{"unknown metric", Spec{Name: "hn", Dimension: 3, Metric: "manhattan"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" Cosine ")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	m, err = ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	_, err = ParseMetric("l1")
	assert.Error(t, err)
}
