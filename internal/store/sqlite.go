package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vburojevic/runwatch/internal/domain"
)

// SQLite is a Store backed by an embedded SQLite database, one table per resource type
type SQLite struct {
	db        *sqlx.DB
	clock     clock.Clock
	retention time.Duration
	logger    *zap.Logger
	tables    map[string]bool
}

// Options configures a SQLite store
type Options struct {
	// Retention is how far back rows are accepted; zero keeps everything
	Retention time.Duration
	Clock     clock.Clock
	Logger    *zap.Logger
}

// row is the on-disk shape of a MetricRow; times are UTC unix nanoseconds so
// range comparisons are numeric
type row struct {
	ResourceName     string  `db:"resource_name"`
	RunID            string  `db:"run_id"`
	TimeNs           int64   `db:"time_ns"`
	Execution        int     `db:"execution"`
	Succeeded        int     `db:"succeeded"`
	Failed           int     `db:"failed"`
	FailedAttempts   int     `db:"failed_attempts"`
	ExecutionTimeSec float64 `db:"execution_time_sec"`
	ErrorMessage     string  `db:"error_message"`
	DurationMs       float64 `db:"duration_ms"`
	BilledDurationMs float64 `db:"billed_duration_ms"`
	MaxMemoryUsedMB  float64 `db:"max_memory_used_mb"`
}

const columns = `resource_name, run_id, time_ns, execution, succeeded, failed, failed_attempts,
	execution_time_sec, error_message, duration_ms, billed_duration_ms, max_memory_used_mb`

// OpenSQLite opens (and migrates) the database at path; ":memory:" is allowed
func OpenSQLite(path string, opts Options) (*SQLite, error) {
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	raw.SetMaxOpenConns(1)

	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &SQLite{
		db:        sqlx.NewDb(raw, "sqlite3"),
		clock:     opts.Clock,
		retention: opts.Retention,
		logger:    opts.Logger,
		tables:    make(map[string]bool),
	}
	if err := s.migrate(); err != nil {
		raw.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	for _, rt := range domain.AllResourceTypes() {
		table := TableName(rt)
		schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			resource_name TEXT NOT NULL,
			run_id TEXT NOT NULL,
			time_ns INTEGER NOT NULL,
			execution INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			failed_attempts INTEGER NOT NULL DEFAULT 0,
			execution_time_sec REAL NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			duration_ms REAL NOT NULL DEFAULT 0,
			billed_duration_ms REAL NOT NULL DEFAULT 0,
			max_memory_used_mb REAL NOT NULL DEFAULT 0,
			UNIQUE(resource_name, run_id, time_ns)
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_resource_time ON %[1]s(resource_name, time_ns);
		`, table)
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
		s.tables[table] = true
	}
	return nil
}

func (s *SQLite) table(name string) (string, error) {
	if !s.tables[name] {
		return "", fmt.Errorf("unknown metrics table %q", name)
	}
	return name, nil
}

// MaxTime returns the latest row time of a resource
func (s *SQLite) MaxTime(ctx context.Context, rt domain.ResourceType, resource string) (time.Time, bool, error) {
	table, err := s.table(TableName(rt))
	if err != nil {
		return time.Time{}, false, err
	}
	var maxNs sql.NullInt64
	query := "SELECT MAX(time_ns) FROM " + table + " WHERE resource_name = ?"
	if err := s.db.GetContext(ctx, &maxNs, query, resource); err != nil {
		return time.Time{}, false, fmt.Errorf("max time %s/%s: %w", rt, resource, err)
	}
	if !maxNs.Valid {
		return time.Time{}, false, nil
	}
	return fromNs(maxNs.Int64), true, nil
}

// MaxTimes returns the latest row time of every resource of a type in one query
func (s *SQLite) MaxTimes(ctx context.Context, rt domain.ResourceType) (map[string]time.Time, error) {
	table, err := s.table(TableName(rt))
	if err != nil {
		return nil, err
	}
	var results []struct {
		ResourceName string `db:"resource_name"`
		MaxNs        int64  `db:"max_ns"`
	}
	query := "SELECT resource_name, MAX(time_ns) AS max_ns FROM " + table + " GROUP BY resource_name"
	if err := s.db.SelectContext(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("max times %s: %w", rt, err)
	}
	out := make(map[string]time.Time, len(results))
	for _, r := range results {
		out[r.ResourceName] = fromNs(r.MaxNs)
	}
	return out, nil
}

// EarliestWritableTime returns now minus the retention period
func (s *SQLite) EarliestWritableTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if s.retention <= 0 {
		return time.Unix(0, 0).UTC(), nil
	}
	return s.clock.Now().UTC().Add(-s.retention), nil
}

// IsEmpty reports whether the table holds no rows
func (s *SQLite) IsEmpty(ctx context.Context, name string) (bool, error) {
	table, err := s.table(name)
	if err != nil {
		return false, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(1) FROM (SELECT 1 FROM "+table+" LIMIT 1)"); err != nil {
		return false, fmt.Errorf("is empty %s: %w", table, err)
	}
	return n == 0, nil
}

// Query reads rows in (Since, Until], ordered by time
func (s *SQLite) Query(ctx context.Context, q domain.Query) ([]domain.MetricRow, error) {
	name := q.Table
	if name == "" {
		name = TableName(q.Type)
	}
	table, err := s.table(name)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	where = append(where, "time_ns > ?")
	args = append(args, toNs(q.Since))
	if !q.Until.IsZero() {
		where = append(where, "time_ns <= ?")
		args = append(args, toNs(q.Until))
	}
	if len(q.Resources) > 0 {
		where = append(where, "resource_name IN (?)")
		args = append(args, q.Resources)
	}
	if q.OnlyFailures {
		where = append(where, "failed > 0")
	}

	query := "SELECT " + columns + " FROM " + table + " WHERE " + strings.Join(where, " AND ") + " ORDER BY time_ns, rowid"
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build query %s: %w", table, err)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out := make([]domain.MetricRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Write inserts rows in one transaction. Rows already present are skipped; a
// row older than the retention floor rejects the whole batch.
func (s *SQLite) Write(ctx context.Context, rt domain.ResourceType, rows []domain.MetricRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	table, err := s.table(TableName(rt))
	if err != nil {
		return 0, err
	}
	floor, err := s.EarliestWritableTime(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if r.Time.Before(floor) {
			return 0, fmt.Errorf("%s/%s at %s (floor %s): %w",
				rt, r.ResourceName, r.Time.Format(time.RFC3339), floor.Format(time.RFC3339), domain.ErrBeforeRetention)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin write %s: %w", table, err)
	}
	defer tx.Rollback()

	insert := "INSERT OR IGNORE INTO " + table + " (" + columns + `) VALUES (
		:resource_name, :run_id, :time_ns, :execution, :succeeded, :failed, :failed_attempts,
		:execution_time_sec, :error_message, :duration_ms, :billed_duration_ms, :max_memory_used_mb)`

	inserted := 0
	for _, r := range rows {
		res, err := tx.NamedExecContext(ctx, insert, fromDomain(r))
		if err != nil {
			return 0, fmt.Errorf("write %s/%s: %w", rt, r.ResourceName, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit write %s: %w", table, err)
	}

	s.logger.Debug("wrote metric rows",
		zap.String("table", table),
		zap.Int("rows", len(rows)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

func toNs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNs(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func fromDomain(m domain.MetricRow) row {
	return row{
		ResourceName:     m.ResourceName,
		RunID:            m.RunID,
		TimeNs:           toNs(m.Time),
		Execution:        m.Execution,
		Succeeded:        m.Succeeded,
		Failed:           m.Failed,
		FailedAttempts:   m.FailedAttempts,
		ExecutionTimeSec: m.ExecutionTimeSec,
		ErrorMessage:     m.ErrorMessage,
		DurationMs:       m.DurationMs,
		BilledDurationMs: m.BilledDurationMs,
		MaxMemoryUsedMB:  m.MaxMemoryUsedMB,
	}
}

func (r row) toDomain() domain.MetricRow {
	return domain.MetricRow{
		ResourceName:     r.ResourceName,
		RunID:            r.RunID,
		Time:             fromNs(r.TimeNs),
		Execution:        r.Execution,
		Succeeded:        r.Succeeded,
		Failed:           r.Failed,
		FailedAttempts:   r.FailedAttempts,
		ExecutionTimeSec: r.ExecutionTimeSec,
		ErrorMessage:     r.ErrorMessage,
		DurationMs:       r.DurationMs,
		BilledDurationMs: r.BilledDurationMs,
		MaxMemoryUsedMB:  r.MaxMemoryUsedMB,
	}
}
