package cli

import (
	"encoding/json"
	"fmt"

	"github.com/vburojevic/runwatch/internal/config"
)

// ConfigCmd shows or manages configuration
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"withargs" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show configuration file path"`
	Generate ConfigGenerateCmd `cmd:"" help:"Generate sample configuration file"`
}

// ConfigShowCmd shows current configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	resources, resErr := cfg.Resources()

	if globals.Format == "ndjson" {
		output := map[string]interface{}{
			"type":      "config",
			"format":    cfg.Format,
			"verbose":   cfg.Verbose,
			"store":     map[string]string{"path": cfg.Store.Path, "retention": cfg.Store.Retention},
			"source":    map[string]string{"dir": cfg.Source.Dir},
			"digest":    map[string]string{"period": cfg.Digest.Period},
			"workers":   cfg.Workers,
			"region":    cfg.Region,
			"resources": len(resources),
		}
		if resErr != nil {
			output["invalid"] = resErr.Error()
		}
		if globals.ConfigFile != "" {
			output["file"] = globals.ConfigFile
		}
		encoder := json.NewEncoder(globals.Stdout)
		return encoder.Encode(output)
	}

	// Text output
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintf(globals.Stdout, "  format:  %s\n", cfg.Format)
	fmt.Fprintf(globals.Stdout, "  verbose: %v\n", cfg.Verbose)
	fmt.Fprintf(globals.Stdout, "  workers: %d\n", cfg.Workers)
	fmt.Fprintf(globals.Stdout, "  region:  %s\n", cfg.Region)
	if cfg.AccountID != "" {
		fmt.Fprintf(globals.Stdout, "  account_id: %s\n", cfg.AccountID)
	}
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Store:")
	fmt.Fprintf(globals.Stdout, "  path:      %s\n", cfg.Store.Path)
	fmt.Fprintf(globals.Stdout, "  retention: %s\n", cfg.Store.Retention)
	fmt.Fprintf(globals.Stdout, "Source dir:    %s\n", cfg.Source.Dir)
	fmt.Fprintf(globals.Stdout, "Digest period: %s\n", cfg.Digest.Period)
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintf(globals.Stdout, "Groups: %d, resources: %d\n", len(cfg.Groups), len(resources))
	if resErr != nil {
		fmt.Fprintf(globals.Stdout, "Invalid resources: %v\n", resErr)
	}

	if globals.ConfigFile != "" {
		fmt.Fprintln(globals.Stdout, "")
		fmt.Fprintf(globals.Stdout, "Loaded from: %s\n", globals.ConfigFile)
	}

	return nil
}

// ConfigPathCmd shows config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := globals.ConfigFile
	if path == "" {
		path = config.ConfigFile()
	}

	if globals.Format == "ndjson" {
		output := map[string]interface{}{
			"type": "config_path",
			"path": path,
		}
		encoder := json.NewEncoder(globals.Stdout)
		return encoder.Encode(output)
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "")
		fmt.Fprintln(globals.Stdout, "Create one at:")
		fmt.Fprintln(globals.Stdout, "  ./runwatch.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.runwatch.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.config/runwatch/config.yaml")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}

	return nil
}

// ConfigGenerateCmd generates a sample configuration file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	fmt.Fprint(globals.Stdout, sampleConfig)
	return nil
}

const sampleConfig = `# runwatch configuration file
# Place this file at ./runwatch.yaml, ~/.runwatch.yaml or ~/.config/runwatch/config.yaml
# Every scalar key can be overridden with RUNWATCH_<KEY>, e.g. RUNWATCH_STORE_PATH

# Output format: "ndjson" (default) or "text"
format: ndjson

# Enable debug logs on stderr
verbose: false

# Resources processed at once
workers: 8

# Defaults for resources that do not set their own
region: us-east-1
# account_id: "123456789012"

store:
  # SQLite database holding one metrics table per resource type
  path: runwatch.db
  # Rows older than this are neither kept nor accepted
  retention: 720h

source:
  # Raw telemetry: <dir>/<resource type>/<resource>.ndjson
  dir: telemetry

digest:
  # Window of the digest command
  period: 24h

groups:
  - name: nightly
    resources:
      glue_jobs:
        - name: orders-etl
          min_required_runs: 1
          sla_seconds: 3600
      lambda_functions:
        - name: orders-api
      step_functions:
        - name: orders-pipeline
          min_required_runs: 1
  - name: streaming
    resources:
      sqs_queues:
        - name: orders-events
          sla_seconds: 300
      glue_data_quality:
        - name: orders-ruleset
`
