// Package tracedb stores simulator runs and their traces in SQLite.
package tracedb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"

	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/sim"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNotFound  = errors.New("run not found")
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Store is a handle on one trace database.
type Store struct {
	db *sql.DB
}

// Run describes one stored simulator run.
type Run struct {
	ID        string
	Scenario  string
	Outcome   string
	Fault     string
	Failures  []string
	StartedAt time.Time
	Events    int
}

// Open creates or opens the database at path. The database uses WAL mode with
// a single connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to trace database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores res and its events under a new time-ordered id.
func (s *Store) SaveRun(ctx context.Context, res *sim.Result, started time.Time) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("run id: %w", err)
	}
	run := Run{
		ID:        id.String(),
		Scenario:  norm.NFC.String(res.Scenario),
		Outcome:   "pass",
		Fault:     sim.FaultName(res.Fault),
		Failures:  res.Failures,
		StartedAt: started,
		Events:    len(res.Events),
	}
	if !res.Passed() {
		run.Outcome = "fail"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, outcome, fault, failures, started_at, events) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Outcome, run.Fault, strings.Join(run.Failures, "\n"), started.UnixNano(), run.Events,
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (run_id, seq, kind, nest, prio, arg, task, note) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, err
	}
	defer stmt.Close()
	for i, e := range res.Events {
		r := e.Record
		if _, err := stmt.ExecContext(ctx, run.ID, i, int(r.Kind), int(r.Nest), int(r.Prio), int(r.Arg), e.Task, e.Note); err != nil {
			return Run{}, fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// LoadRun returns the run whose id is id or starts with id, and its events.
func (s *Store) LoadRun(ctx context.Context, id string) (Run, []sim.Event, error) {
	if id == "" {
		return Run{}, nil, fmt.Errorf("%w: empty run id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, runColumns+` WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`, len(id), id)
	if err != nil {
		return Run{}, nil, err
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, nil, err
	}
	switch len(runs) {
	case 0:
		return Run{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return Run{}, nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
	run := runs[0]

	rows, err = s.db.QueryContext(ctx,
		`SELECT kind, nest, prio, arg, task, note FROM events WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	defer rows.Close()

	events := make([]sim.Event, 0, run.Events)
	for rows.Next() {
		var kind, nest, prio, arg int
		var e sim.Event
		if err := rows.Scan(&kind, &nest, &prio, &arg, &e.Task, &e.Note); err != nil {
			return Run{}, nil, err
		}
		e.Record = kernel.Record{
			Kind: kernel.Kind(kind),
			Nest: uint8(nest),
			Prio: kernel.Priority(prio),
			Arg:  uint8(arg),
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, err
	}
	return run, events, nil
}

// ListRuns returns stored runs, newest first. An empty scenario lists every
// scenario; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	q := runColumns
	var args []any
	if scenario != "" {
		q += ` WHERE scenario = ?`
		args = append(args, norm.NFC.String(scenario))
	}
	q += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

const runColumns = `SELECT id, scenario, outcome, fault, failures, started_at, events FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var failures string
		var started int64
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Outcome, &r.Fault, &failures, &started, &r.Events); err != nil {
			return nil, err
		}
		if failures != "" {
			r.Failures = strings.Split(failures, "\n")
		}
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
