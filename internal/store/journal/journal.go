// Package journal keeps a flat scan history beside the ticket store so
// past generation runs can be replayed during review.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voledge/internal/types"

	_ "github.com/glebarez/go-sqlite"
)

// RunRecord captures one generation pass: what was scanned, under which
// regime, and which tickets came out.
type RunRecord struct {
	ID          int64                `json:"id"`
	Timestamp   int64                `json:"ts"`
	Bias        string               `json:"bias"`
	Symbols     []string             `json:"symbols,omitempty"`
	Regime      types.RegimeSnapshot `json:"regime"`
	TicketIDs   []string             `json:"ticket_ids,omitempty"`
	TicketCount int                  `json:"ticket_count"`
	Error       string               `json:"error,omitempty"`
}

// RunJournal persists run records to its own sqlite file.
type RunJournal struct {
	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*RunJournal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunJournal{db: db}, nil
}

func (j *RunJournal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generation_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			bias TEXT,
			symbols TEXT,
			regime_json TEXT,
			ticket_ids TEXT,
			ticket_count INTEGER,
			error TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generation_runs_ts ON generation_runs(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append writes one run record and returns its row id.
func (j *RunJournal) Append(ctx context.Context, rec RunRecord) (int64, error) {
	j.mu.Lock()
	db := j.db
	j.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("run journal is closed")
	}
	ts := rec.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	enc := func(v interface{}) string {
		if v == nil {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO generation_runs
			(ts, bias, symbols, regime_json, ticket_ids, ticket_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts,
		rec.Bias,
		enc(rec.Symbols),
		enc(rec.Regime),
		enc(rec.TicketIDs),
		rec.TicketCount,
		rec.Error,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns the latest runs, newest first. limit <= 0 means 50.
func (j *RunJournal) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	j.mu.Lock()
	db := j.db
	j.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("run journal is closed")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, ts, bias, symbols, regime_json, ticket_ids, ticket_count, error
		FROM generation_runs ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var symbols, regimeJSON, ticketIDs, errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Bias, &symbols, &regimeJSON, &ticketIDs, &rec.TicketCount, &errText); err != nil {
			return nil, err
		}
		decode(symbols.String, &rec.Symbols)
		decode(regimeJSON.String, &rec.Regime)
		decode(ticketIDs.String, &rec.TicketIDs)
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(blob string, target interface{}) {
	if strings.TrimSpace(blob) == "" {
		return
	}
	_ = json.Unmarshal([]byte(blob), target)
}
