// Package ledger persists transaction records in SQLite. The workload is
// low-volume and correctness-first: every operation takes a coarse store-wide
// lock shared by request handling and the reconciliation loop.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const listLimit = 50

var (
	ErrNotFound = errors.New("transaction record not found")
	// ErrTerminal is returned when an update targets a record whose status
	// already reached Confirmed or Failed.
	ErrTerminal = errors.New("transaction record is already terminal")
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount_lamports INTEGER NOT NULL,
    destination TEXT NOT NULL,
    provider TEXT NOT NULL,
    status TEXT NOT NULL,
    tx_hash TEXT,
    note TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
`

type Store struct {
	mu    sync.Mutex
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (or creates) the ledger database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new Pending record and returns its identifier. This must
// happen before any broadcast so a crash mid-execution leaves a trace.
func (s *Store) Create(ctx context.Context, amount uint64, destination, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	createdAt := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO transactions (id, amount_lamports, destination, provider, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, int64(amount), destination, provider, string(StatusPending), createdAt)
	if err != nil {
		return "", fmt.Errorf("insert transaction record: %w", err)
	}
	return id, nil
}

// SetStatus moves a non-terminal record to status, recording the hash and
// note when non-empty. Updating a terminal record returns ErrTerminal; the
// guard lives in the SQL so no caller can race past it.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, txHash, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE transactions
		 SET status = ?,
		     tx_hash = CASE WHEN ? != '' THEN ? ELSE tx_hash END,
		     note = CASE WHEN ? != '' THEN ? ELSE note END
		 WHERE id = ? AND status IN (?, ?)`,
		string(status), txHash, txHash, note, note, id,
		string(StatusPending), string(StatusBroadcast))
	if err != nil {
		return fmt.Errorf("update transaction record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.get(ctx, id); err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

// Get returns the record with the given identifier.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id string) (Record, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, amount_lamports, destination, provider, status, tx_hash, note, created_at
		 FROM transactions WHERE id = ?`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListRecent returns up to limit records, newest first. A non-positive limit
// falls back to the operational default of 50.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > listLimit {
		limit = listLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, amount_lamports, destination, provider, status, tx_hash, note, created_at
		 FROM transactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transaction records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Unresolved returns records still awaiting a terminal outcome. Broadcast and
// Pending are both treated as "not yet terminal" here.
func (s *Store) Unresolved(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, amount_lamports, destination, provider, status, tx_hash, note, created_at
		 FROM transactions WHERE status IN (?, ?) ORDER BY created_at ASC`,
		string(StatusPending), string(StatusBroadcast))
	if err != nil {
		return nil, fmt.Errorf("scan unresolved records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var (
		rec       Record
		amount    int64
		txHash    sql.NullString
		note      sql.NullString
		createdAt string
	)
	if err := scan(&rec.ID, &amount, &rec.Destination, &rec.Provider, &rec.Status, &txHash, &note, &createdAt); err != nil {
		return Record{}, err
	}
	rec.Amount = uint64(amount)
	rec.TxHash = txHash.String
	rec.Note = note.String
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
