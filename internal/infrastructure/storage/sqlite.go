package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/momentum_backtest/internal/domain"
)

var ErrNotFound = domain.ErrNotFound

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			bars INTEGER NOT NULL DEFAULT 0,
			starting_cash TEXT NOT NULL,
			final_value TEXT NOT NULL DEFAULT '0',
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			date DATETIME NOT NULL,
			price REAL NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id);`,
		`CREATE TABLE IF NOT EXISTS fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			price TEXT NOT NULL,
			commission TEXT NOT NULL,
			date DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// RunRepository Implementation

// SaveRun inserts the run or updates its totals when it already exists.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	query := `INSERT INTO runs (id, symbol, start_date, end_date, bars, starting_cash, final_value, started_at, finished_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  bars=excluded.bars,
			  final_value=excluded.final_value,
			  finished_at=excluded.finished_at`
	var finished interface{}
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Symbol, run.Start, run.End, run.Bars,
		run.StartingCash.String(), run.FinalValue.String(), run.StartedAt, finished)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	query := `SELECT id, symbol, start_date, end_date, bars, starting_cash, final_value, started_at, finished_at FROM runs WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	query := `SELECT id, symbol, start_date, end_date, bars, starting_cash, final_value, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var r domain.Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Symbol, &r.Start, &r.End, &r.Bars, &r.StartingCash, &r.FinalValue, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

func (s *SQLiteStore) SaveSignal(ctx context.Context, runID string, event *domain.SignalEvent) error {
	query := `INSERT INTO signals (run_id, symbol, kind, date, price, reason)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		runID, event.Symbol, event.Kind, event.Date, event.Price, event.Reason)
	return err
}

// ListSignals returns the run's buy and sell events in recording order.
func (s *SQLiteStore) ListSignals(ctx context.Context, runID string) ([]*domain.SignalEvent, error) {
	query := `SELECT symbol, kind, date, price, reason FROM signals WHERE run_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.SignalEvent
	for rows.Next() {
		var e domain.SignalEvent
		if err := rows.Scan(&e.Symbol, &e.Kind, &e.Date, &e.Price, &e.Reason); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) SaveFill(ctx context.Context, runID string, fill *domain.Fill) error {
	query := `INSERT INTO fills (run_id, order_id, symbol, side, qty, price, commission, date)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		runID, fill.OrderID, fill.Symbol, fill.Side, fill.Qty,
		fill.Price.String(), fill.Commission.String(), fill.Date)
	return err
}

func (s *SQLiteStore) ListFills(ctx context.Context, runID string) ([]*domain.Fill, error) {
	query := `SELECT order_id, symbol, side, qty, price, commission, date FROM fills WHERE run_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []*domain.Fill
	for rows.Next() {
		var f domain.Fill
		if err := rows.Scan(&f.OrderID, &f.Symbol, &f.Side, &f.Qty, &f.Price, &f.Commission, &f.Date); err != nil {
			return nil, err
		}
		fills = append(fills, &f)
	}
	return fills, rows.Err()
}
