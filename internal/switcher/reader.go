package switcher

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"
)

// Reader provides read-only access to the cc-switch provider database.
//
// The database is exclusively owned by the external application, so the
// connection is opened fresh for every read and closed before the call
// returns; it is never held across calls, and concurrent writes by the
// owning tool are never blocked.
type Reader struct {
	dbPath string
}

// NewReader creates a reader bound to the given database path.
func NewReader(dbPath string) *Reader {
	return &Reader{dbPath: dbPath}
}

// DatabasePath returns the database location used for the existence check,
// for display and debugging purposes.
func (r *Reader) DatabasePath() string {
	return r.dbPath
}

// IsInstalled reports whether the cc-switch database exists on disk.
// A missing database is the normal "feature disabled" state, not an error.
func (r *Reader) IsInstalled() bool {
	info, err := os.Stat(r.dbPath)
	return err == nil && !info.IsDir()
}

// Providers returns a snapshot of all provider records in ascending id
// order. Any failure opening or querying the store is logged and converted
// to an empty slice; the common "cc-switch not present" case must never
// require defensive error handling in callers.
func (r *Reader) Providers(ctx context.Context) []Provider {
	if !r.IsInstalled() {
		return nil
	}

	providers, err := r.readProviders(ctx)
	if err != nil {
		log.Printf("[Switcher] read providers from %s: %v", r.dbPath, err)
		return nil
	}
	return providers
}

func (r *Reader) readProviders(ctx context.Context) ([]Provider, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", r.dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, `
        SELECT id, name, api_key, base_url, is_active, preset, models, created_at, updated_at
        FROM providers
        ORDER BY id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			log.Printf("[Switcher] skipping unreadable provider row: %v", err)
			continue
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	return providers, nil
}

// ActiveProvider returns the first provider flagged active, in ascending id
// order, or nil when none is active. At most one record is conventionally
// active, but the data model does not enforce this; zero or multiple active
// rows are tolerated.
func (r *Reader) ActiveProvider(ctx context.Context) *Provider {
	for _, p := range r.Providers(ctx) {
		if p.Active {
			active := p
			return &active
		}
	}
	return nil
}
