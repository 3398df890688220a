package correlate

import (
	"strings"
	"testing"

	"github.com/vburojevic/runwatch/internal/domain"
)

func FuzzCorrelate(f *testing.F) {
	// Seeds: a full invocation, an orphan error, and junk.
	f.Add("START RequestId: a Version: 1\nEND RequestId: a\nREPORT RequestId: a Duration: 1 ms")
	f.Add("[ERROR]\tx\ty\tz\nSTART RequestId: b\nERROR boom")
	f.Add("REPORT RequestId: Duration: Billed Duration: Max Memory Used:")

	c := NewCorrelator(nil)
	f.Fuzz(func(t *testing.T, s string) {
		var lines []domain.LogLine
		for i, msg := range strings.Split(s, "\n") {
			lines = append(lines, domain.LogLine{Timestamp: at(i), StreamID: "s", Message: msg})
		}
		for _, rec := range c.CorrelateAll("fn", lines) {
			if !rec.Status.Terminal() {
				t.Fatalf("emitted non-terminal record %+v", rec)
			}
		}
	})
}

func FuzzParseReport(f *testing.F) {
	f.Add("REPORT RequestId: a\tDuration: 102.25 ms\tBilled Duration: 103 ms\tMemory Size: 128 MB\tMax Memory Used: 70 MB")
	f.Add("Duration: 1e9999 ms")
	f.Add("not a report")

	f.Fuzz(func(t *testing.T, s string) {
		_ = domain.ParseReport(s)
	})
}
