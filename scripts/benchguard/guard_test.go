package main

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseOutput = `goos: linux
goarch: amd64
pkg: github.com/vburojevic/runwatch/internal/correlate
BenchmarkCorrelate-8   	    5000	    200000 ns/op	   40000 B/op	     500 allocs/op
BenchmarkCorrelate-8   	    5000	    180000 ns/op	   40000 B/op	     500 allocs/op
BenchmarkSQLiteWrite-8 	    1000	      1.5 ms/op
BenchmarkOther-8       	    1000	      1000 ns/op
PASS
`

func TestParseBench(t *testing.T) {
	results, err := parseBench(strings.NewReader(baseOutput))
	require.NoError(t, err)
	require.Len(t, results, 3)

	c := results["BenchmarkCorrelate-8"]
	assert.Equal(t, 180000.0, c.TimeNs, "fastest repeat is kept")
	assert.Equal(t, 40000.0, c.BytesOp)
	assert.Equal(t, 500.0, c.AllocsOp)

	w := results["BenchmarkSQLiteWrite-8"]
	assert.Equal(t, 1.5e6, w.TimeNs)
	assert.True(t, math.IsNaN(w.BytesOp))
}

func TestCompare(t *testing.T) {
	base, err := parseBench(strings.NewReader(baseOutput))
	require.NoError(t, err)
	head, err := parseBench(strings.NewReader(`
BenchmarkCorrelate-8   	    5000	    190000 ns/op	   90000 B/op	     500 allocs/op
BenchmarkSQLiteWrite-8 	    1000	      4 ms/op
BenchmarkOther-8       	    1000	    900000 ns/op
`))
	require.NoError(t, err)

	lim := limits{Time: 2, Bytes: 1.5, Allocs: 1.5}
	regressions, compared := compare(base, head, regexp.MustCompile(`^Benchmark(Correlate|SQLite)`), lim)

	assert.Equal(t, 2, compared, "unmatched benchmarks are ignored")
	require.Len(t, regressions, 2)
	assert.Equal(t, "BenchmarkSQLiteWrite-8", regressions[0].Name)
	assert.Equal(t, "time/op", regressions[0].Metric)
	assert.Equal(t, "BenchmarkCorrelate-8", regressions[1].Name)
	assert.Equal(t, "B/op", regressions[1].Metric)

	_, compared = compare(base, head, nil, lim)
	assert.Equal(t, 3, compared)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, ratio(0, 0))
	assert.True(t, math.IsInf(ratio(0, 1), 1))
	assert.Equal(t, 2.0, ratio(1, 2))
}
