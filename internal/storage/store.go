// Package storage keeps a catalog of integration runs and their sampled
// solutions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/sim"
	"github.com/san-kum/ddesim/internal/storage/migrations"
	"gopkg.in/yaml.v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dbFile = "runs.db"

var (
	ErrRunNotFound  = errors.New("storage: run not found")
	ErrAmbiguousRun = errors.New("storage: run id prefix is ambiguous")
	ErrDuplicateRun = errors.New("storage: run already exists")
)

type Store struct {
	db *sql.DB
}

// Run is one stored integration.
type Run struct {
	ID        string
	Model     string
	CreatedAt time.Time
	Duration  float64
	SampleDt  float64
	Dim       int
	Config    *config.Config
	Failed    bool
	Stats     sim.Stats
	Samples   int
}

// Open opens (creating if needed) the catalog in dir and applies migrations.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dsn := filepath.Join(filepath.Clean(dir), dbFile) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a run and its samples in one transaction and returns its id.
func (s *Store) Save(ctx context.Context, cfg *config.Config, tr *sim.Trajectory) (string, error) {
	return s.SaveWithID(ctx, uuid.NewString(), cfg, tr)
}

func (s *Store) SaveWithID(ctx context.Context, id string, cfg *config.Config, tr *sim.Trajectory) (string, error) {
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	dim := 0
	if len(tr.States) > 0 {
		dim = len(tr.States[0])
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	st := tr.Stats
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, model, created_at, duration, sample_dt, dim, config, failed,
		   accepted, rejected, throttled, iterations, evaluations, min_pws_factor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, cfg.Model, time.Now().UTC().UnixMilli(), cfg.Duration, cfg.SampleDt, dim,
		string(cfgYAML), tr.Failed,
		st.Accepted, st.Rejected, st.Throttled, st.Iterations, st.Evaluations, st.MinPWSFactor,
	)
	if err != nil {
		if isConstraint(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateRun, id)
		}
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (run_id, idx, time, state) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, t := range tr.Times {
		if _, err := stmt.ExecContext(ctx, id, i, t, encodeState(tr.States[i])); err != nil {
			return "", fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

const runColumns = `r.id, r.model, r.created_at, r.duration, r.sample_dt, r.dim, r.config, r.failed,
	r.accepted, r.rejected, r.throttled, r.iterations, r.evaluations, r.min_pws_factor,
	(SELECT COUNT(*) FROM samples s WHERE s.run_id = r.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r         Run
		createdAt int64
		cfgYAML   string
	)
	err := row.Scan(&r.ID, &r.Model, &createdAt, &r.Duration, &r.SampleDt, &r.Dim, &cfgYAML, &r.Failed,
		&r.Stats.Accepted, &r.Stats.Rejected, &r.Stats.Throttled, &r.Stats.Iterations,
		&r.Stats.Evaluations, &r.Stats.MinPWSFactor, &r.Samples)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.Config = config.DefaultConfig()
	if err := yaml.Unmarshal([]byte(cfgYAML), r.Config); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", r.ID, err)
	}
	return &r, nil
}

// List returns all runs, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Get returns the run with the given id or unique id prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id = ? OR r.id LIKE ? || '%' ORDER BY r.id = ? DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// Samples returns the sampled solution of a run.
func (s *Store) Samples(ctx context.Context, id string) ([]float64, []dde.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT time, state FROM samples WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	times := make([]float64, 0)
	states := make([]dde.State, 0)
	for rows.Next() {
		var (
			t    float64
			blob []byte
		)
		if err := rows.Scan(&t, &blob); err != nil {
			return nil, nil, err
		}
		y, err := decodeState(blob)
		if err != nil {
			return nil, nil, err
		}
		times = append(times, t)
		states = append(states, y)
	}
	return times, states, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// States are stored as little-endian float64 so NaN survives the round trip.
func encodeState(y dde.State) []byte {
	buf := make([]byte, 8*len(y))
	for i, v := range y {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeState(buf []byte) (dde.State, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("corrupt state blob of %d bytes", len(buf))
	}
	y := make(dde.State, len(buf)/8)
	for i := range y {
		y[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return y, nil
}

func isConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
