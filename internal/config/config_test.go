package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/runwatch/internal/domain"
)

// chdir moves into dir for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(origDir))
	})
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "ndjson", cfg.Format)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "runwatch.db", cfg.Store.Path)
	assert.Equal(t, "720h", cfg.Store.Retention)
	assert.Equal(t, "telemetry", cfg.Source.Dir)
	assert.Equal(t, "24h", cfg.Digest.Period)
	assert.Equal(t, 8, cfg.Workers)
	assert.Empty(t, cfg.Groups)
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		chdir(t, t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, "ndjson", cfg.Format)
	})

	t.Run("loads config from current directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		chdir(t, tmpDir)
		writeConfig(t, tmpDir, ".runwatch.yaml", "format: text\nworkers: 3\n")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, 3, cfg.Workers)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		configPath := writeConfig(t, t.TempDir(), "bad.yaml", "invalid: yaml: content: [")

		cfg, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parses all config fields", func(t *testing.T) {
		configContent := `
format: text
verbose: true
workers: 4
region: eu-west-1
account_id: "123456789012"
store:
  path: /var/lib/runwatch/metrics.db
  retention: 168h
source:
  dir: /var/lib/runwatch/telemetry
digest:
  period: 12h
groups:
  - name: nightly
    resources:
      glue_jobs:
        - name: etl-orders
          min_required_runs: 1
          sla_seconds: 900
        - name: etl-customers
      lambda_functions:
        - name: ingest
          region: us-west-2
  - name: streaming
    resources:
      sqs_queues:
        - name: events
          sla_seconds: 60.5
`
		configPath := writeConfig(t, t.TempDir(), "runwatch.yaml", configContent)

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, "text", cfg.Format)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, "/var/lib/runwatch/metrics.db", cfg.Store.Path)
		assert.Equal(t, "/var/lib/runwatch/telemetry", cfg.Source.Dir)

		retention, err := cfg.RetentionPeriod()
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, retention)
		period, err := cfg.DigestPeriod()
		require.NoError(t, err)
		assert.Equal(t, 12*time.Hour, period)

		require.Len(t, cfg.Groups, 2)
		assert.Equal(t, "nightly", cfg.Groups[0].Name)
		assert.Len(t, cfg.Groups[0].Resources["glue_jobs"], 2)

		resources, err := cfg.Resources()
		require.NoError(t, err)
		require.Len(t, resources, 4)

		assert.Equal(t, domain.Resource{
			Type:            domain.ResourceGlueJobs,
			Name:            "etl-orders",
			Group:           "nightly",
			Region:          "eu-west-1",
			AccountID:       "123456789012",
			MinRequiredRuns: 1,
			SLASeconds:      900,
		}, resources[0])
		assert.Equal(t, "etl-customers", resources[1].Name)
		assert.Equal(t, domain.ResourceLambdaFunctions, resources[2].Type)
		assert.Equal(t, "us-west-2", resources[2].Region)
		assert.Equal(t, "streaming", resources[3].Group)
		assert.Equal(t, 60.5, resources[3].SLASeconds)
	})
}

func TestResourcesRejectsUnknownTypes(t *testing.T) {
	cfg := Default()
	cfg.Groups = []GroupConfig{{
		Name: "g",
		Resources: map[string][]ResourceConfig{
			"glue_jobs":       {{Name: "a"}},
			"kinesis_streams": {{Name: "b"}},
			"step_functions":  {{Name: ""}},
		},
	}}

	resources, err := cfg.Resources()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownResourceType)
	assert.Contains(t, err.Error(), "without a name")
	require.Len(t, resources, 1)
	assert.Equal(t, "a", resources[0].Name)
}

func TestDurations(t *testing.T) {
	cfg := Default()
	cfg.Store.Retention = ""
	retention, err := cfg.RetentionPeriod()
	require.NoError(t, err)
	assert.Zero(t, retention)

	cfg.Store.Retention = "forever"
	_, err = cfg.RetentionPeriod()
	assert.Error(t, err)

	cfg.Digest.Period = "0s"
	_, err = cfg.DigestPeriod()
	assert.Error(t, err)
}

func TestFindConfigFile(t *testing.T) {
	t.Run("finds .runwatch.yaml in current directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		chdir(t, tmpDir)
		configPath := writeConfig(t, tmpDir, ".runwatch.yaml", "format: text")

		found := findConfigFile()
		// Resolve symlinks for comparison (macOS /var -> /private/var)
		expectedPath, err := filepath.EvalSymlinks(configPath)
		require.NoError(t, err)
		foundPath, err := filepath.EvalSymlinks(found)
		require.NoError(t, err)
		assert.Equal(t, expectedPath, foundPath)
	})

	t.Run("prefers .runwatch.yaml over .runwatch.yml", func(t *testing.T) {
		tmpDir := t.TempDir()
		chdir(t, tmpDir)
		yamlPath := writeConfig(t, tmpDir, ".runwatch.yaml", "format: yaml")
		writeConfig(t, tmpDir, ".runwatch.yml", "format: yml")

		found := findConfigFile()
		expectedPath, err := filepath.EvalSymlinks(yamlPath)
		require.NoError(t, err)
		foundPath, err := filepath.EvalSymlinks(found)
		require.NoError(t, err)
		assert.Equal(t, expectedPath, foundPath)
	})

	t.Run("ignores a bare config.yaml in the current directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		chdir(t, tmpDir)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		writeConfig(t, tmpDir, "config.yaml", "format: text")

		assert.Empty(t, findConfigFile())
	})
}

func TestEnvOverridesViaViper(t *testing.T) {
	t.Run("format overrides from env", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("RUNWATCH_FORMAT", "text")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
	})

	t.Run("nested key override via env replacer", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("RUNWATCH_STORE_PATH", "/tmp/env.db")
		t.Setenv("RUNWATCH_DIGEST_PERIOD", "1h")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/env.db", cfg.Store.Path)
		assert.Equal(t, "1h", cfg.Digest.Period)
	})

	t.Run("env wins over file", func(t *testing.T) {
		tmpDir := t.TempDir()
		chdir(t, tmpDir)
		writeConfig(t, tmpDir, "runwatch.yaml", "workers: 2\n")
		t.Setenv("RUNWATCH_WORKERS", "16")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Workers)
	})
}
