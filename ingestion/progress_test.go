package ingestion

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 2)

	tracker.Start()
	assert.True(t, tracker.started, "should be started")

	tracker.Increment(true)
	assert.Empty(t, buf.String(), "should wait for the report interval")
	tracker.Increment(false)
	tracker.Increment(true)
	tracker.Increment(true)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0), "elapsed time should be positive")

	output := buf.String()
	assert.Contains(t, output, "2/4 (50.0%) - 1 failed")
	assert.Contains(t, output, "4/4 (100.0%) - 1 failed")

	done, failed := tracker.Done()
	assert.Equal(t, 4, done)
	assert.Equal(t, 1, failed)
}

func TestProgressTracker_FinishShrinksTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 30, 10)

	tracker.Start()
	tracker.Increment(true)
	tracker.Increment(true)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "2/2", "finish should report items actually finished")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "\n", "finish should print newline")
	assert.Equal(t, time.Duration(0), tracker.Elapsed(), "finished tracker is stopped")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0", "should handle zero total")
}

func TestProgressTracker_BeyondEstimate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1, 1)

	tracker.Start()
	tracker.Increment(true)
	tracker.Increment(true)

	assert.Contains(t, buf.String(), "2/2")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Increment(true)
	tracker.Finish()

	assert.Empty(t, buf.String(), "should not report before Start")
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

func TestProgressTracker_Nil(t *testing.T) {
	var tracker *ProgressTracker

	assert.NotPanics(t, func() {
		tracker.Start()
		tracker.Increment(true)
		tracker.Finish()
		done, failed := tracker.Done()
		assert.Zero(t, done)
		assert.Zero(t, failed)
	})
}

func TestProgressTracker_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)
	tracker.Start()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment(i%10 != 0)
		}()
	}
	wg.Wait()

	done, failed := tracker.Done()
	assert.Equal(t, 100, done)
	assert.Equal(t, 10, failed)
}
