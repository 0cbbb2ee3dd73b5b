package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-scripts/harvest/internal/dedup"
	"github.com/go-scripts/harvest/internal/types"
)

// SQLiteSink stores records in a SQLite database, one row per record,
// keyed by run, site and identity key.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sessions for different sites finish concurrently
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, runID: runID, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL,
		site TEXT NOT NULL,
		position INTEGER NOT NULL,
		identity_key TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		url TEXT NOT NULL,
		data TEXT NOT NULL,
		harvested_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, site, identity_key)
	);
	CREATE INDEX IF NOT EXISTS idx_records_site ON records(site, harvested_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Write replaces this run's rows for site.
func (s *SQLiteSink) Write(ctx context.Context, site string, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE run_id = ? AND site = ?", s.runID, site); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (run_id, site, position, identity_key, name, price, url, data, harvested_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	at := s.now().UTC()
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		_, err = stmt.ExecContext(ctx, s.runID, site, i, dedup.Key(r), r.Name(), r[types.FieldPrice], r.URL(), string(data), at)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Records reads back the rows of one run and site in harvest order.
func (s *SQLiteSink) Records(ctx context.Context, runID, site string) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM records WHERE run_id = ? AND site = ? ORDER BY position", runID, site)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var r types.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
