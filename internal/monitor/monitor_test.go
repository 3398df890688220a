package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vburojevic/runwatch/internal/checkpoint"
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/registry"
	"github.com/vburojevic/runwatch/internal/source"
	"github.com/vburojevic/runwatch/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const reqID = "6d1c7a8e-1111-4222-8333-444455556666"

type fixture struct {
	root  string
	clock *clock.Mock
	store *store.SQLite
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(now)
	st, err := store.OpenSQLite(":memory:", store.Options{Retention: 7 * 24 * time.Hour, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{root: t.TempDir(), clock: clk, store: st}
}

func (f *fixture) write(t *testing.T, rt domain.ResourceType, name string, lines ...string) {
	t.Helper()
	dir := filepath.Join(f.root, string(rt))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".ndjson"), []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func (f *fixture) monitor(src source.Source) *Monitor {
	if src == nil {
		src = source.NewDir(f.root, nil)
	}
	return New(registry.Default(nil), f.store, src, Options{Workers: 2, Clock: f.clock})
}

func (f *fixture) seed(t *testing.T) {
	f.write(t, domain.ResourceGlueJobs, "etl",
		`{"Id":"jr_old","JobRunState":"SUCCEEDED","StartedOn":"2024-05-01T10:00:00Z"}`,
		`{"Id":"jr_1","JobRunState":"SUCCEEDED","StartedOn":"2024-06-01T10:00:00Z","ExecutionTime":60}`,
		`{"Id":"jr_2","JobRunState":"FAILED","StartedOn":"2024-06-01T11:00:00Z","ErrorMessage":"OOM on executor"}`,
	)
	f.write(t, domain.ResourceLambdaFunctions, "fn",
		`{"timestamp":"2024-06-01T11:30:00Z","logStreamName":"s1","message":"START RequestId: `+reqID+` Version: $LATEST"}`,
		`{"timestamp":"2024-06-01T11:30:01Z","logStreamName":"s1","message":"END RequestId: `+reqID+`"}`,
		`{"timestamp":"2024-06-01T11:30:01Z","logStreamName":"s1","message":"REPORT RequestId: `+reqID+`\tDuration: 900.00 ms\tBilled Duration: 900 ms\tMemory Size: 128 MB\tMax Memory Used: 70 MB"}`,
	)
}

var (
	etl = domain.Resource{Type: domain.ResourceGlueJobs, Name: "etl", Group: "nightly", MinRequiredRuns: 3}
	fn  = domain.Resource{Type: domain.ResourceLambdaFunctions, Name: "fn", Group: "nightly"}
)

func byName(results []ResourceResult) map[string]ResourceResult {
	out := make(map[string]ResourceResult, len(results))
	for _, r := range results {
		out[r.Resource.Name] = r
	}
	return out
}

func TestExtractWritesAndAlerts(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	m := f.monitor(nil)
	ctx := context.Background()

	report := m.Extract(ctx, []domain.Resource{etl, fn}, nil)
	require.False(t, report.Partial)
	require.NoError(t, report.Err())
	assert.Equal(t, now, report.Until)

	got := byName(report.Results)
	require.Len(t, got, 2)

	assert.Equal(t, now.Add(-7*24*time.Hour), got["etl"].Since, "first cycle starts at the retention floor")
	assert.Equal(t, 2, got["etl"].Extracted)
	assert.Equal(t, 2, got["etl"].Written)
	require.NotNil(t, got["etl"].Alert)
	assert.True(t, got["etl"].Alerting())
	assert.False(t, got["etl"].Alert.InsufficientRuns)
	require.Len(t, got["etl"].Alert.Comments, 1)
	assert.Contains(t, got["etl"].Alert.Comments[0], "OOM on executor")

	assert.Equal(t, 1, got["fn"].Written)
	assert.False(t, got["fn"].Alerting())

	// Second cycle starts at the stored checkpoint and finds nothing new.
	report = m.Extract(ctx, []domain.Resource{etl, fn}, nil)
	got = byName(report.Results)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), got["etl"].Since)
	assert.Equal(t, 0, got["etl"].Extracted)
	assert.Equal(t, 0, got["fn"].Written)
}

func TestExtractPayloadCheckpointWins(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	payloads := Payloads{domain.ResourceGlueJobs: checkpoint.Payload{"etl": time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)}}
	report := f.monitor(nil).Extract(context.Background(), []domain.Resource{etl}, payloads)

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].Extracted)
}

type failingSource struct {
	source.Source
	fail string
}

func (s failingSource) FetchRuns(ctx context.Context, res domain.Resource, since, until time.Time) ([][]byte, error) {
	if res.Name == s.fail {
		return nil, errors.New("throttled")
	}
	return s.Source.FetchRuns(ctx, res, since, until)
}

// slowSource advances the clock while a fetch is in flight
type slowSource struct {
	source.Source
	clock *clock.Mock
	lag   time.Duration
}

func (s slowSource) FetchRuns(ctx context.Context, res domain.Resource, since, until time.Time) ([][]byte, error) {
	s.clock.Add(s.lag)
	return s.Source.FetchRuns(ctx, res, since, until)
}

func TestExtractDropsRowsBehindMovedFloor(t *testing.T) {
	f := newFixture(t)
	f.write(t, domain.ResourceGlueJobs, "etl",
		`{"Id":"jr_edge","JobRunState":"SUCCEEDED","StartedOn":"2024-05-25T12:00:01Z"}`,
		`{"Id":"jr_new","JobRunState":"FAILED","StartedOn":"2024-06-01T11:00:00Z","ErrorMessage":"OOM on executor"}`,
	)
	m := f.monitor(slowSource{Source: source.NewDir(f.root, nil), clock: f.clock, lag: 2 * time.Second})

	report := m.Extract(context.Background(), []domain.Resource{etl}, nil)
	require.NoError(t, report.Err())
	got := byName(report.Results)["etl"]

	assert.Equal(t, now.Add(-7*24*time.Hour), got.Since)
	assert.Equal(t, 2, got.Extracted)
	assert.Equal(t, 1, got.Written)
	assert.Equal(t, 1, got.Dropped)
	require.NotNil(t, got.Alert)
	assert.Equal(t, domain.StatusError, got.Alert.Status())
	require.Len(t, got.Alert.Comments, 1)
	assert.Contains(t, got.Alert.Comments[0], "jr_new")

	rows, err := f.store.Query(context.Background(), domain.Query{Type: domain.ResourceGlueJobs})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "jr_new", rows[0].RunID)
}

func TestExtractIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.write(t, domain.ResourceGlueJobs, "other",
		`{"Id":"jr_9","JobRunState":"SUCCEEDED","StartedOn":"2024-06-01T09:00:00Z"}`)
	other := domain.Resource{Type: domain.ResourceGlueJobs, Name: "other", Group: "nightly"}
	unknown := domain.Resource{Type: "kinesis_streams", Name: "ks", Group: "nightly"}

	m := f.monitor(failingSource{Source: source.NewDir(f.root, nil), fail: "etl"})
	report := m.Extract(context.Background(), []domain.Resource{etl, other, unknown, fn}, nil)

	require.False(t, report.Partial)
	got := byName(report.Results)
	require.Len(t, got, 4)

	var re *domain.ResourceError
	require.ErrorAs(t, got["etl"].Err, &re)
	assert.Equal(t, "extract", re.Op)
	assert.ErrorIs(t, got["ks"].Err, domain.ErrUnknownResourceType)
	assert.NoError(t, got["other"].Err)
	assert.Equal(t, 1, got["other"].Written)
	assert.NoError(t, got["fn"].Err)

	notes := report.Failures()
	require.Len(t, notes, 2)
	assert.Error(t, report.Err())
	for _, n := range notes {
		assert.Equal(t, "nightly", n.Group)
		assert.NotEmpty(t, n.Message)
	}
}

func TestExtractCanceledIsPartial(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.monitor(nil).Extract(ctx, []domain.Resource{etl, fn}, nil)
	assert.True(t, report.Partial)
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
}

func TestPrefetch(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	m := f.monitor(nil)
	ctx := context.Background()

	m.Extract(ctx, []domain.Resource{etl, fn}, nil)

	payloads, err := m.Prefetch(ctx, []domain.Resource{etl, fn})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), payloads[domain.ResourceGlueJobs]["etl"])
	assert.Equal(t, time.Date(2024, 6, 1, 11, 30, 0, 0, time.UTC), payloads[domain.ResourceLambdaFunctions]["fn"])
}

func TestDigest(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	m := f.monitor(nil)
	ctx := context.Background()
	idle := domain.Resource{Type: domain.ResourceStepFunctions, Name: "idle", Group: "hourly", MinRequiredRuns: 1}

	m.Extract(ctx, []domain.Resource{etl, fn}, nil)
	report := m.Digest(ctx, []domain.Resource{etl, fn, idle}, 24*time.Hour)

	require.False(t, report.Partial)
	assert.Equal(t, now.Add(-24*time.Hour), report.Since)
	require.Len(t, report.Results, 3)

	first := report.Results[0]
	assert.Equal(t, domain.StatusError, first.Status)

	nightly := report.Summaries["nightly"]
	assert.Equal(t, domain.SummaryEntry{Executions: 2, Success: 1, Failures: 2}, nightly[domain.ResourceGlueJobs])
	assert.Equal(t, domain.SummaryEntry{Executions: 1, Success: 1}, nightly[domain.ResourceLambdaFunctions])

	hourly := report.Summaries["hourly"][domain.ResourceStepFunctions]
	assert.Equal(t, 1, hourly.Failures, "a resource that never ran is a failure")
	assert.Equal(t, domain.StatusError, report.Status())
}

func TestDigestUnknownTypeBecomesNote(t *testing.T) {
	f := newFixture(t)
	unknown := domain.Resource{Type: "kinesis_streams", Name: "ks", Group: "g"}

	report := f.monitor(nil).Digest(context.Background(), []domain.Resource{unknown, fn}, time.Hour)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ks", report.Failures[0].Resource)
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.StatusOK, report.Results[0].Status)
	assert.Equal(t, domain.StatusWarning, report.Status())
}
