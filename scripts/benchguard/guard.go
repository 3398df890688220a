package main

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// benchResult is one benchmark line of `go test -bench` output
type benchResult struct {
	Name     string
	TimeNs   float64
	BytesOp  float64
	AllocsOp float64
}

var timeUnitToNs = map[string]float64{
	"ns/op": 1,
	"us/op": 1e3,
	"µs/op": 1e3,
	"ms/op": 1e6,
	"s/op":  1e9,
}

// parseBench reads benchmark results; when a benchmark repeats (-count) the
// fastest run is kept
func parseBench(r io.Reader) (map[string]benchResult, error) {
	results := make(map[string]benchResult)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		res, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if prev, seen := results[res.Name]; seen && prev.TimeNs <= res.TimeNs {
			continue
		}
		results[res.Name] = res
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseLine(line string) (benchResult, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
		return benchResult{}, false
	}

	res := benchResult{Name: fields[0], TimeNs: math.NaN(), BytesOp: math.NaN(), AllocsOp: math.NaN()}
	for i := 2; i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i-1], 64)
		if err != nil {
			continue
		}
		switch unit := fields[i]; {
		case timeUnitToNs[unit] > 0:
			res.TimeNs = v * timeUnitToNs[unit]
		case unit == "B/op":
			res.BytesOp = v
		case unit == "allocs/op":
			res.AllocsOp = v
		}
	}
	if math.IsNaN(res.TimeNs) {
		return benchResult{}, false
	}
	return res, true
}

// limits are the largest head/base ratios tolerated per metric
type limits struct {
	Time   float64
	Bytes  float64
	Allocs float64
}

type regression struct {
	Name   string
	Metric string
	Base   float64
	Head   float64
	Ratio  float64
}

func ratio(base, head float64) float64 {
	if base == 0 {
		if head == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return head / base
}

// compare returns the regressions of head against base for benchmarks matching
// match (nil matches all) and how many benchmarks were compared
func compare(base, head map[string]benchResult, match *regexp.Regexp, lim limits) ([]regression, int) {
	var regressions []regression
	compared := 0
	for name, b := range base {
		h, ok := head[name]
		if !ok || (match != nil && !match.MatchString(name)) {
			continue
		}
		compared++

		check := func(metric string, bv, hv, max float64) {
			if math.IsNaN(bv) || math.IsNaN(hv) {
				return
			}
			if r := ratio(bv, hv); r > max {
				regressions = append(regressions, regression{Name: name, Metric: metric, Base: bv, Head: hv, Ratio: r})
			}
		}
		check("time/op", b.TimeNs, h.TimeNs, lim.Time)
		check("B/op", b.BytesOp, h.BytesOp, lim.Bytes)
		check("allocs/op", b.AllocsOp, h.AllocsOp, lim.Allocs)
	}

	sort.Slice(regressions, func(i, j int) bool {
		if regressions[i].Ratio == regressions[j].Ratio {
			if regressions[i].Name == regressions[j].Name {
				return regressions[i].Metric < regressions[j].Metric
			}
			return regressions[i].Name < regressions[j].Name
		}
		return regressions[i].Ratio > regressions[j].Ratio
	})
	return regressions, compared
}
