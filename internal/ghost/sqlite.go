package ghost

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements Store using SQLite. Decimals are stored as TEXT so
// no precision is lost in the audit trail.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// ttl <= 0 uses DefaultTTL.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: ttl}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ghost_entries (
			id TEXT PRIMARY KEY,
			intent_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			violations TEXT NOT NULL DEFAULT '',
			abort_reason TEXT NOT NULL,
			q_price TEXT NOT NULL,
			q_amount TEXT NOT NULL,
			raw_price TEXT NOT NULL,
			raw_amount TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ghost_symbol ON ghost_entries(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_ghost_created_at ON ghost_entries(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Record stores an entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ghost_entries
			(id, intent_id, symbol, created_at, violations, abort_reason,
			 q_price, q_amount, raw_price, raw_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.IntentID, e.Symbol, e.CreatedAt,
		strings.Join(e.Violations, ","), e.AbortReason,
		e.QuantizedPrice.String(), e.QuantizedAmount.String(),
		e.RawPrice.String(), e.RawAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("insert ghost entry: %w", err)
	}
	return nil
}

// List returns entries for a symbol, newest first.
func (s *SQLiteStore) List(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, intent_id, symbol, created_at, violations, abort_reason,
		       q_price, q_amount, raw_price, raw_amount
		FROM ghost_entries`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ghost entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var violations, qPrice, qAmount, rawPrice, rawAmount string
		if err := rows.Scan(&e.ID, &e.IntentID, &e.Symbol, &e.CreatedAt,
			&violations, &e.AbortReason,
			&qPrice, &qAmount, &rawPrice, &rawAmount); err != nil {
			return nil, fmt.Errorf("scan ghost entry: %w", err)
		}
		if violations != "" {
			e.Violations = strings.Split(violations, ",")
		}
		if e.QuantizedPrice, err = decimal.NewFromString(qPrice); err != nil {
			return nil, fmt.Errorf("parse q_price: %w", err)
		}
		if e.QuantizedAmount, err = decimal.NewFromString(qAmount); err != nil {
			return nil, fmt.Errorf("parse q_amount: %w", err)
		}
		if e.RawPrice, err = decimal.NewFromString(rawPrice); err != nil {
			return nil, fmt.Errorf("parse raw_price: %w", err)
		}
		if e.RawAmount, err = decimal.NewFromString(rawAmount); err != nil {
			return nil, fmt.Errorf("parse raw_amount: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneExpired removes entries older than the TTL.
func (s *SQLiteStore) PruneExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ttl)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ghost_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ghost entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
