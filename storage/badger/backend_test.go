package badger

import (
	"context"
	"testing"

	"github.com/poiesic/hnindex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir+"/db", false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())

	// Closing twice is harmless
	assert.NoError(t, backend.Close())
}

func TestClosedBackend_LedgerUnavailable(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	ledger := NewLedgerRepository(backend)
	_, err = ledger.ListProcessedIDs(context.Background())
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	err = ledger.MarkProcessed(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrStoreWrite)
}
