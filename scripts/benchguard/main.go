// Command benchguard fails CI when the correlator or store benchmarks regress
// between two `go test -bench -benchmem` outputs.
package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/alecthomas/kong"
	"github.com/olekukonko/tablewriter"
)

type guardCmd struct {
	Base           string  `required:"" type:"existingfile" help:"Base benchmark output"`
	Head           string  `required:"" type:"existingfile" help:"Head benchmark output"`
	Match          string  `default:"^Benchmark(Correlate|SQLite)" help:"Only compare benchmarks matching this regexp"`
	MaxTimeRatio   float64 `default:"2.0" help:"Fail if time/op regresses by more than this ratio"`
	MaxBytesRatio  float64 `default:"1.5" help:"Fail if B/op regresses by more than this ratio"`
	MaxAllocsRatio float64 `default:"1.5" help:"Fail if allocs/op regresses by more than this ratio"`
}

func parseBenchFile(path string) (map[string]benchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBench(f)
}

func main() {
	var cmd guardCmd
	kong.Parse(&cmd, kong.Name("benchguard"), kong.UsageOnError())

	match, err := regexp.Compile(cmd.Match)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid --match: %v\n", err)
		os.Exit(2)
	}
	base, err := parseBenchFile(cmd.Base)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to parse base: %v\n", err)
		os.Exit(2)
	}
	head, err := parseBenchFile(cmd.Head)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to parse head: %v\n", err)
		os.Exit(2)
	}

	regressions, compared := compare(base, head, match, limits{
		Time:   cmd.MaxTimeRatio,
		Bytes:  cmd.MaxBytesRatio,
		Allocs: cmd.MaxAllocsRatio,
	})
	if compared == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "no overlapping benchmarks found between base and head outputs")
		os.Exit(2)
	}
	if len(regressions) == 0 {
		fmt.Printf("benchguard: ok (%d benchmarks compared)\n", compared)
		return
	}

	fmt.Printf("benchguard: found %d regressions (%d benchmarks compared)\n", len(regressions), compared)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Benchmark", "Metric", "Base", "Head", "Ratio")
	for _, r := range regressions {
		_ = table.Append([]string{
			r.Name,
			r.Metric,
			fmt.Sprintf("%.0f", r.Base),
			fmt.Sprintf("%.0f", r.Head),
			fmt.Sprintf("x%.2f", r.Ratio),
		})
	}
	_ = table.Render()
	os.Exit(1)
}
