package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/sampling"
)

// Ledger drivers.
const (
	LedgerNone     = "none"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "pgx"
)

const defaultSQLitePath = "mandelarea.db"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Entry is one recorded estimate.
type Entry struct {
	ID         int64           `json:"id"`
	Experiment Experiment      `json:"experiment"`
	Method     sampling.Method `json:"method"`
	NumSamples int             `json:"num_samples"`
	MaxIter    int             `json:"max_iter"`
	Area       float64         `json:"area"`
	Duration   time.Duration   `json:"duration_ns"`
	Seed       uint64          `json:"seed"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Recorder accepts estimate entries. A nil Recorder is never passed around;
// use NopRecorder instead.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NopRecorder discards entries.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Entry) error { return nil }

// Ledger appends every estimate to a SQL table.
type Ledger struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
}

// OpenLedger opens the ledger for driver ("sqlite" or "pgx") and ensures its
// table exists. An empty sqlite DSN selects a file in the working directory.
func OpenLedger(ctx context.Context, driver, dsn string) (*Ledger, error) {
	switch driver {
	case LedgerSQLite:
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		if dir := filepath.Dir(dsn); !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case LedgerPostgres:
		if dsn == "" {
			return nil, errors.New("postgres ledger requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
	openMu.Lock()
	db, err := sqlOpen(driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == LedgerSQLite {
		// One writer; sqlite serialises anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	l := &Ledger{db: db, driver: driver}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// DB exposes the underlying sql.DB for tests.
func (l *Ledger) DB() *sql.DB { return l.db }

// Driver returns the database/sql driver name.
func (l *Ledger) Driver() string { return l.driver }

func (l *Ledger) migrate(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if l.driver == LedgerPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	ddl := `CREATE TABLE IF NOT EXISTS estimates (
		id ` + idColumn + `,
		experiment TEXT NOT NULL,
		method TEXT NOT NULL,
		num_samples BIGINT NOT NULL,
		max_iter BIGINT NOT NULL,
		area DOUBLE PRECISION NOT NULL,
		duration_ns BIGINT NOT NULL,
		seed TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return apperrors.StorageError{Op: "migrate", Key: "estimates", Cause: err}
	}
	return nil
}

// rebind rewrites "?" placeholders to "$n" for postgres.
func (l *Ledger) rebind(query string) string {
	if l.driver != LedgerPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record inserts e. A zero RecordedAt is stamped with the current time.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// seed is stored as text: uint64 values above MaxInt64 do not fit BIGINT.
	_, err := l.db.ExecContext(ctx, l.rebind(`INSERT INTO estimates
		(experiment, method, num_samples, max_iter, area, duration_ns, seed, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		string(e.Experiment), string(e.Method), e.NumSamples, e.MaxIter, e.Area,
		int64(e.Duration), strconv.FormatUint(e.Seed, 10), e.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.StorageError{Op: "insert", Key: "estimates", Cause: err}
	}
	return nil
}

// Filter narrows Entries. Zero fields match everything.
type Filter struct {
	Experiment Experiment
	Method     sampling.Method
	Limit      int
}

// Entries returns recorded estimates in insertion order.
func (l *Ledger) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, experiment, method, num_samples, max_iter, area, duration_ns, seed, recorded_at
		FROM estimates`
	var where []string
	var args []any
	if f.Experiment != "" {
		where = append(where, "experiment = ?")
		args = append(args, string(f.Experiment))
	}
	if f.Method != "" {
		where = append(where, "method = ?")
		args = append(args, string(f.Method))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}
	rows, err := l.db.QueryContext(ctx, l.rebind(query), args...)
	if err != nil {
		return nil, apperrors.StorageError{Op: "query", Key: "estimates", Cause: err}
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			experiment, method string
			duration           int64
			seed, recordedAt   string
		)
		if err := rows.Scan(&e.ID, &experiment, &method, &e.NumSamples, &e.MaxIter, &e.Area, &duration, &seed, &recordedAt); err != nil {
			return nil, apperrors.StorageError{Op: "scan", Key: "estimates", Cause: err}
		}
		e.Experiment = Experiment(experiment)
		e.Method = sampling.Method(method)
		e.Duration = time.Duration(duration)
		if e.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, apperrors.StorageError{Op: "scan", Key: "estimates", Cause: err}
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, apperrors.StorageError{Op: "scan", Key: "estimates", Cause: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError{Op: "iterate", Key: "estimates", Cause: err}
	}
	return out, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error { return l.db.Close() }
