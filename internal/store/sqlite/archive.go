// Package sqlite archives finalized candles in a local SQLite file so the
// engine can rebuild warm history without hammering the broker's kline
// endpoint after a restart.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"fxassist/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// ArchiveConfig configures the SQLite archive.
type ArchiveConfig struct {
	DBPath string // e.g. "data/candles.db"
}

// Archive is a single-writer SQLite store with transaction batching.
// Appends buffer in memory and commit every defaultBatchSize rows or
// defaultFlushDelay, whichever comes first.
type Archive struct {
	db *sql.DB

	mu    sync.Mutex
	batch []row
	done  chan struct{}

	// OnCommit is called after each batch commit (optional, metrics).
	OnCommit func(n int, took time.Duration)
}

type row struct {
	symbol model.Symbol
	tf     model.Timeframe
	c      model.Candle
}

// DB returns the underlying sql.DB for health checks.
func (a *Archive) DB() *sql.DB { return a.db }

// New opens the archive in WAL mode and ensures the schema.
func New(cfg ArchiveConfig) (*Archive, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	a := &Archive{
		db:    db,
		batch: make([]row, 0, defaultBatchSize),
		done:  make(chan struct{}),
	}
	go a.flushLoop()

	log.Printf("[sqlite] opened archive at %s", cfg.DBPath)
	return a, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			tf        TEXT    NOT NULL,
			open_time INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			filled    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, tf, open_time)
		);
	`)
	return err
}

// Append buffers one finalized candle for the next batch commit.
func (a *Archive) Append(ctx context.Context, symbol model.Symbol, tf model.Timeframe, c model.Candle) error {
	a.mu.Lock()
	a.batch = append(a.batch, row{symbol, tf, c})
	full := len(a.batch) >= defaultBatchSize
	a.mu.Unlock()
	if full {
		return a.flush()
	}
	return nil
}

// Load returns up to n most recent candles for (symbol, tf), oldest first.
func (a *Archive) Load(ctx context.Context, symbol model.Symbol, tf model.Timeframe, n int) ([]model.Candle, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume, filled
		FROM candles WHERE symbol = ? AND tf = ?
		ORDER BY open_time DESC LIMIT ?
	`, string(symbol), tf.Label(), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		var ms int64
		var vol sql.NullFloat64
		var filled int
		if err := rows.Scan(&ms, &c.Open, &c.High, &c.Low, &c.Close, &vol, &filled); err != nil {
			return nil, err
		}
		c.OpenTime = time.UnixMilli(ms).UTC()
		c.Volume = vol.Float64
		c.Filled = filled != 0
		out = append(out, c)
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// Close flushes the pending batch and closes the database.
func (a *Archive) Close() error {
	close(a.done)
	if err := a.flush(); err != nil {
		log.Printf("[sqlite] final flush error: %v", err)
	}
	return a.db.Close()
}

func (a *Archive) flushLoop() {
	ticker := time.NewTicker(defaultFlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			if err := a.flush(); err != nil {
				log.Printf("[sqlite] batch insert error: %v", err)
			}
		}
	}
}

// flush commits the pending batch in a single transaction.
func (a *Archive) flush() error {
	a.mu.Lock()
	if len(a.batch) == 0 {
		a.mu.Unlock()
		return nil
	}
	batch := a.batch
	a.batch = make([]row, 0, defaultBatchSize)
	a.mu.Unlock()

	start := time.Now()
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, tf, open_time, open, high, low, close, volume, filled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		filled := 0
		if r.c.Filled {
			filled = 1
		}
		if _, err := stmt.Exec(string(r.symbol), r.tf.Label(), r.c.OpenTime.UnixMilli(),
			r.c.Open, r.c.High, r.c.Low, r.c.Close, r.c.Volume, filled); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if a.OnCommit != nil {
		a.OnCommit(len(batch), time.Since(start))
	}
	return nil
}

// LastOpenTime returns the newest archived open_time for (symbol, tf),
// zero time if the series is empty.
func (a *Archive) LastOpenTime(ctx context.Context, symbol model.Symbol, tf model.Timeframe) (time.Time, error) {
	var ms sql.NullInt64
	err := a.db.QueryRowContext(ctx,
		`SELECT MAX(open_time) FROM candles WHERE symbol = ? AND tf = ?`,
		string(symbol), tf.Label(),
	).Scan(&ms)
	if err != nil || !ms.Valid {
		return time.Time{}, err
	}
	return time.UnixMilli(ms.Int64).UTC(), nil
}
