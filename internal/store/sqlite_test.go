package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/runwatch/internal/domain"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func openTest(t *testing.T, retention time.Duration) *SQLite {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(now)
	s, err := OpenSQLite(":memory:", Options{Retention: retention, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func metricRow(name, id string, ts time.Time, failed bool) domain.MetricRow {
	r := domain.MetricRow{ResourceName: name, RunID: id, Time: ts, Execution: 1, ExecutionTimeSec: 12.5}
	if failed {
		r.Failed = 1
		r.ErrorMessage = "Failed"
	} else {
		r.Succeeded = 1
	}
	return r
}

func TestSQLiteMaxTime(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, 30*24*time.Hour)

	_, ok, err := s.MaxTime(ctx, domain.ResourceGlueJobs, "etl")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Write(ctx, domain.ResourceGlueJobs, []domain.MetricRow{
		metricRow("etl", "jr_1", now.Add(-3*time.Hour), false),
		metricRow("etl", "jr_2", now.Add(-1*time.Hour), true),
		metricRow("other", "jr_3", now.Add(-30*time.Minute), false),
	})
	require.NoError(t, err)

	got, ok, err := s.MaxTime(ctx, domain.ResourceGlueJobs, "etl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Add(-1*time.Hour), got)

	all, err := s.MaxTimes(ctx, domain.ResourceGlueJobs)
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{
		"etl":   now.Add(-1 * time.Hour),
		"other": now.Add(-30 * time.Minute),
	}, all)
}

func TestSQLiteRetentionFloor(t *testing.T) {
	ctx := context.Background()

	t.Run("floor is now minus retention", func(t *testing.T) {
		s := openTest(t, 24*time.Hour)
		floor, err := s.EarliestWritableTime(ctx)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-24*time.Hour), floor)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		s := openTest(t, 0)
		floor, err := s.EarliestWritableTime(ctx)
		require.NoError(t, err)
		assert.Equal(t, time.Unix(0, 0).UTC(), floor)
	})

	t.Run("rejects writes before the floor", func(t *testing.T) {
		s := openTest(t, 24*time.Hour)
		_, err := s.Write(ctx, domain.ResourceStepFunctions, []domain.MetricRow{
			metricRow("sm", "ok", now.Add(-time.Hour), false),
			metricRow("sm", "old", now.Add(-48*time.Hour), false),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrBeforeRetention))

		empty, err := s.IsEmpty(ctx, TableName(domain.ResourceStepFunctions))
		require.NoError(t, err)
		assert.True(t, empty)
	})
}

func TestSQLiteWriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, 0)
	rows := []domain.MetricRow{
		metricRow("fn", "req-1", now.Add(-time.Minute), false),
		metricRow("fn", "req-1", now.Add(-2*time.Minute), false),
	}

	n, err := s.Write(ctx, domain.ResourceLambdaFunctions, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "same request id at different times is two executions")

	n, err = s.Write(ctx, domain.ResourceLambdaFunctions, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.Query(ctx, domain.Query{Type: domain.ResourceLambdaFunctions})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteQuery(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, 0)
	_, err := s.Write(ctx, domain.ResourceGlueJobs, []domain.MetricRow{
		metricRow("a", "1", now.Add(-5*time.Hour), false),
		metricRow("a", "2", now.Add(-2*time.Hour), true),
		metricRow("b", "3", now.Add(-1*time.Hour), false),
		metricRow("c", "4", now.Add(-1*time.Hour), true),
	})
	require.NoError(t, err)

	t.Run("window is exclusive of since and inclusive of until", func(t *testing.T) {
		got, err := s.Query(ctx, domain.Query{
			Table: TableName(domain.ResourceGlueJobs),
			Since: now.Add(-5 * time.Hour),
			Until: now.Add(-2 * time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2", got[0].RunID)
		assert.Equal(t, "Failed", got[0].ErrorMessage)
		assert.Equal(t, 12.5, got[0].ExecutionTimeSec)
	})

	t.Run("filters resources", func(t *testing.T) {
		got, err := s.Query(ctx, domain.Query{
			Type:      domain.ResourceGlueJobs,
			Resources: []string{"a", "b"},
		})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("only failures", func(t *testing.T) {
		got, err := s.Query(ctx, domain.Query{Type: domain.ResourceGlueJobs, OnlyFailures: true})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ResourceName)
		assert.Equal(t, "c", got[1].ResourceName)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := s.Query(ctx, domain.Query{Table: "users; DROP TABLE x"})
		assert.Error(t, err)
	})
}

func TestSQLiteIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, 0)

	empty, err := s.IsEmpty(ctx, TableName(domain.ResourceSQSQueues))
	require.NoError(t, err)
	assert.True(t, empty)

	_, err = s.Write(ctx, domain.ResourceSQSQueues, []domain.MetricRow{metricRow("q", "1", now, false)})
	require.NoError(t, err)

	empty, err = s.IsEmpty(ctx, TableName(domain.ResourceSQSQueues))
	require.NoError(t, err)
	assert.False(t, empty)

	_, err = s.IsEmpty(ctx, "nope")
	assert.Error(t, err)
}
