package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/storage"
	"github.com/poiesic/hnindex/storage/sqlite/migrations"
)

// Ledger implements storage.LedgerRepository on a SQLite database file.
type Ledger struct {
	db   *sql.DB
	path string
}

var _ storage.LedgerRepository = (*Ledger)(nil)

// Open opens (creating if needed) the ledger database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %w", storage.ErrStoreUnavailable, err)
		}
	}

	// WAL keeps readers unblocked while a mark commits
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", storage.ErrStoreUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}

	l := &Ledger{
		db:   db,
		path: path,
	}

	if err := l.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", storage.ErrStoreUnavailable, err)
	}

	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// ListProcessedIDs returns every id in processed_items.
func (l *Ledger) ListProcessedIDs(ctx context.Context) (map[core.ID]struct{}, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT item_id FROM processed_items")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	ids := make(map[core.ID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
		}
		ids[core.ID(id)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return ids, nil
}

// IsProcessed reports whether id has a row in processed_items.
func (l *Ledger) IsProcessed(ctx context.Context, id core.ID) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	defer conn.Close()

	var one int
	err = conn.QueryRowContext(ctx, "SELECT 1 FROM processed_items WHERE item_id = ?", int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return true, nil
}

// MarkProcessed inserts a row for id unless one exists.
func (l *Ledger) MarkProcessed(ctx context.Context, id core.ID) (err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: item %d: %w", storage.ErrStoreWrite, id, err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: item %d: %w", storage.ErrStoreWrite, id, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	now := time.Now().UTC().UnixMicro()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO processed_items (item_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO NOTHING
	`, int64(id), now, now)
	if err != nil {
		return fmt.Errorf("%w: item %d: %w", storage.ErrStoreWrite, id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: item %d: %w", storage.ErrStoreWrite, id, err)
	}
	return nil
}

// GetMarker returns the stored marker for id.
// Returns storage.ErrNotFound if the item was never marked.
func (l *Ledger) GetMarker(ctx context.Context, id core.ID) (*core.ProcessedMarker, error) {
	var created, updated int64
	err := l.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM processed_items WHERE item_id = ?", int64(id),
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return &core.ProcessedMarker{
		ItemID:    id,
		CreatedAt: time.UnixMicro(created).UTC(),
		UpdatedAt: time.UnixMicro(updated).UTC(),
	}, nil
}

// migrate runs all pending migrations.
func (l *Ledger) migrate(ctx context.Context, fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := l.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_processed_items.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := l.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}
