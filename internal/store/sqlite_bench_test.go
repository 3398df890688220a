package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vburojevic/runwatch/internal/domain"
)

func BenchmarkSQLiteWrite(b *testing.B) {
	clk := clock.NewMock()
	clk.Set(now)
	s, err := OpenSQLite(":memory:", Options{Clock: clk})
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	rows := make([]domain.MetricRow, 500)
	for i := range rows {
		rows[i] = metricRow("etl", fmt.Sprintf("jr_%d", i), now.Add(-time.Duration(i)*time.Minute), i%10 == 0)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Rows after the first round are duplicates and take the ignore path.
		if _, err := s.Write(ctx, domain.ResourceGlueJobs, rows); err != nil {
			b.Fatal(err)
		}
	}
}
