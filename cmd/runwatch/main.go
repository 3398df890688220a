package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/runwatch/internal/cli"
	"github.com/vburojevic/runwatch/internal/config"
)

const quickStart = `runwatch - incremental run metrics and digests for data pipelines

START HERE:
  runwatch config generate > runwatch.yaml   Write a sample configuration
  runwatch extract                           Pull new runs into the metrics store
  runwatch digest --format text              Roll up the last digest period

Other useful commands:
  runwatch resources                         List configured resources with console links
  runwatch schema                            JSON Schema of every NDJSON record
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from the standard locations and environment
	configFile := config.ConfigFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
		configFile = ""
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format": cfg.Format,
	}

	ctx := kong.Parse(&c,
		kong.Name("runwatch"),
		kong.Description("runwatch: incremental metrics extraction, alerting and digests for pipeline resources"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	flagsSet := map[string]bool{}
	for _, p := range ctx.Path {
		if p.Flag != nil {
			flagsSet[p.Flag.Name] = true
		}
	}

	// An explicit --config replaces the searched configuration
	if c.ConfigFile != "" {
		cfg, err = config.LoadFromFile(c.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load config %s: %v\n", c.ConfigFile, err)
			os.Exit(2)
		}
		configFile = c.ConfigFile
		if !flagsSet["format"] {
			c.Format = cfg.Format
		}
	}

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	globals.FlagsSet = flagsSet
	globals.ConfigFile = configFile

	if err := ctx.Run(globals); err != nil {
		var cliErr *cli.CLIError
		if !errors.As(err, &cliErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		_ = globals.Log().Sync()
		os.Exit(1)
	}
}
