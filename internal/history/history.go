// Package history records interface statistics samples in a local sqlite
// database so throughput can be reviewed after the dashboard is closed.
package history

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultLimit caps Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

// Sample is one recorded statistics row.
type Sample struct {
	AdapterID     string    `json:"adapterId" yaml:"adapter_id"`
	ReceivedBytes uint64    `json:"receivedBytes" yaml:"received_bytes"`
	SentBytes     uint64    `json:"sentBytes" yaml:"sent_bytes"`
	RxPerSec      float64   `json:"rxPerSec" yaml:"rx_per_sec"`
	TxPerSec      float64   `json:"txPerSec" yaml:"tx_per_sec"`
	SampledAt     time.Time `json:"sampledAt" yaml:"sampled_at"`
}

// Store is the sqlite-backed sample table.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
	path   string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.Wrapf(err, "history: create directory for %s failed", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: open sqlite database failed")
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := prepareSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(`INSERT INTO samples
		(adapter_id, received_bytes, sent_bytes, rx_per_sec, tx_per_sec, sampled_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "history: prepare insert failed")
	}
	return &Store{db: db, insert: stmt, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return pkgerrors.Wrapf(err, "history: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func prepareSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			adapter_id TEXT NOT NULL,
			received_bytes INTEGER NOT NULL,
			sent_bytes INTEGER NOT NULL,
			rx_per_sec REAL NOT NULL DEFAULT 0,
			tx_per_sec REAL NOT NULL DEFAULT 0,
			sampled_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS samples_adapter_time ON samples (adapter_id, sampled_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return pkgerrors.Wrap(err, "history: prepare schema failed")
		}
	}
	return nil
}

// Write inserts samples in one transaction.
func (s *Store) Write(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "history: begin transaction failed")
	}
	stmt := tx.StmtContext(ctx, s.insert)
	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, smp.AdapterID,
			clampInt64(smp.ReceivedBytes), clampInt64(smp.SentBytes),
			smp.RxPerSec, smp.TxPerSec, smp.SampledAt.UnixNano()); err != nil {
			_ = tx.Rollback()
			return pkgerrors.Wrapf(err, "history: insert sample for %s failed", smp.AdapterID)
		}
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "history: commit failed")
	}
	return nil
}

// Recent returns the newest samples first. An empty adapterID means every
// adapter.
func (s *Store) Recent(ctx context.Context, adapterID string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := `SELECT adapter_id, received_bytes, sent_bytes, rx_per_sec, tx_per_sec, sampled_at
		FROM samples`
	args := []any{}
	if adapterID != "" {
		q += ` WHERE adapter_id = ?`
		args = append(args, adapterID)
	}
	q += ` ORDER BY sampled_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query samples failed")
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			smp       Sample
			rx, tx    int64
			sampledAt int64
		)
		if err := rows.Scan(&smp.AdapterID, &rx, &tx, &smp.RxPerSec, &smp.TxPerSec, &sampledAt); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan sample failed")
		}
		smp.ReceivedBytes = uint64(rx)
		smp.SentBytes = uint64(tx)
		smp.SampledAt = time.Unix(0, sampledAt).UTC()
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "history: iterate samples failed")
	}
	return out, nil
}

// Adapters lists the adapter IDs that have samples.
func (s *Store) Adapters(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT adapter_id FROM samples ORDER BY adapter_id`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query adapters failed")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan adapter failed")
		}
		out = append(out, id)
	}
	return out, pkgerrors.Wrap(rows.Err(), "history: iterate adapters failed")
}

// Prune deletes samples older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE sampled_at < ?`, before.UnixNano())
	if err != nil {
		return 0, pkgerrors.Wrap(err, "history: prune failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "history: prune row count failed")
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.insert != nil {
		_ = s.insert.Close()
	}
	return s.db.Close()
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
