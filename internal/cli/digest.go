package cli

import (
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/output"
)

// DigestCmd rolls up the stored metrics of the last period
type DigestCmd struct {
	Type        []string      `short:"t" help:"Only digest these resource types (repeatable)"`
	Group       []string      `short:"g" help:"Only digest resources of these groups (repeatable)"`
	Period      time.Duration `short:"p" help:"Digest window ending now (default: digest.period from config)"`
	Timeout     time.Duration `default:"0s" help:"Stop after this long and report the finished types (0 = no limit)"`
	FailOnError bool          `help:"Exit non-zero when the digest status is error"`
}

// Run executes the digest command
func (c *DigestCmd) Run(globals *Globals) error {
	resources, err := selectResources(globals, c.Type, c.Group)
	if err != nil {
		return outputError(globals, codeConfig, err)
	}

	window := c.Period
	if window <= 0 {
		if window, err = globals.Config.DigestPeriod(); err != nil {
			return outputErrorCommon(globals, codeConfig, err.Error())
		}
	}

	e, err := openEnv(globals)
	if err != nil {
		return outputError(globals, codeStore, err)
	}
	defer e.Close()

	ctx, cancel := commandContext(c.Timeout)
	defer cancel()

	globals.Debug("digest of %d resources over %s", len(resources), window)
	report := e.monitor.Digest(ctx, resources, window)
	if err := output.NewEmitter(globals.Format, globals.Stdout).Digest(report); err != nil {
		return err
	}

	if c.FailOnError && report.Status() == domain.StatusError {
		return &CLIError{Code: codeDigest, Message: "digest status is error"}
	}
	return nil
}
