package cli

import (
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/config"
	"github.com/vburojevic/runwatch/internal/logging"
)

// CLI is the root command structure for runwatch
type CLI struct {
	// Global flags
	Format     string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Output format"`
	Verbose    bool   `short:"v" help:"Show debug logs on stderr"`
	ConfigFile string `name:"config" short:"c" type:"path" help:"Configuration file (default: search ./, ~, the user config dir and /etc/runwatch)"`

	// Commands
	Version   VersionCmd   `cmd:"" help:"Show version information"`
	Extract   ExtractCmd   `cmd:"" help:"Extract new runs of every configured resource into the metrics store"`
	Digest    DigestCmd    `cmd:"" help:"Roll up stored metrics into a per-resource and per-group digest"`
	Resources ResourcesCmd `cmd:"" help:"List configured resources with their console links"`
	Schema    SchemaCmd    `cmd:"" help:"Output JSON Schema for runwatch output records"`
	Config    ConfigCmd    `cmd:"" help:"Show or manage configuration"`
}

// Globals holds shared state for all commands
type Globals struct {
	Format   string
	Verbose  bool
	Stdout   io.Writer
	Stderr   io.Writer
	Config   *config.Config
	FlagsSet map[string]bool

	// ConfigFile is the file the configuration was loaded from, if any
	ConfigFile string

	// Clock and Logger are created on first use when unset
	Clock  clock.Clock
	Logger *zap.Logger
}

// NewGlobals creates a new Globals instance from CLI flags
func NewGlobals(cli *CLI) *Globals {
	return NewGlobalsWithConfig(cli, config.Default())
}

// NewGlobalsWithConfig creates a new Globals instance with config fallbacks
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  cli.Format,
		Verbose: cli.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	return g
}

// Log returns the command logger, writing to Stderr
func (g *Globals) Log() *zap.Logger {
	if g.Logger == nil {
		g.Logger = logging.New(g.Stderr, g.Verbose)
	}
	return g.Logger
}

// Debug logs a debug message if verbose mode is enabled
func (g *Globals) Debug(format string, args ...interface{}) {
	g.Log().Sugar().Debugf(format, args...)
}

func (g *Globals) clock() clock.Clock {
	if g.Clock == nil {
		g.Clock = clock.New()
	}
	return g.Clock
}

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		_, err := io.WriteString(globals.Stdout, `{"type":"version","version":"`+Version+`","commit":"`+Commit+`"}`+"\n")
		return err
	}
	_, err := io.WriteString(globals.Stdout, "runwatch version "+Version+" ("+Commit+")\n")
	return err
}

// Version information (set at build time)
var (
	Version = "dev"
	Commit  = "none"
)
