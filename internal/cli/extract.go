package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/checkpoint"
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/monitor"
	"github.com/vburojevic/runwatch/internal/output"
)

// ExtractCmd runs one incremental extraction cycle
type ExtractCmd struct {
	Type        []string      `short:"t" help:"Only extract these resource types (repeatable)"`
	Group       []string      `short:"g" help:"Only extract resources of these groups (repeatable)"`
	Checkpoints string        `type:"existingfile" help:"JSON file of caller checkpoints: {\"<type>\": {\"<resource>\": \"<RFC3339>\"}}"`
	Prefetch    bool          `help:"Read the stored checkpoints of each type in one query before extracting"`
	Timeout     time.Duration `default:"0s" help:"Stop after this long and report the finished resources (0 = no limit)"`
}

// Run executes the extract command
func (c *ExtractCmd) Run(globals *Globals) error {
	resources, err := selectResources(globals, c.Type, c.Group)
	if err != nil {
		return outputError(globals, codeConfig, err)
	}

	payloads := make(monitor.Payloads)
	if c.Checkpoints != "" {
		if payloads, err = readPayloads(c.Checkpoints); err != nil {
			return outputErrorCommon(globals, codeCheckpoint, err.Error())
		}
	}

	e, err := openEnv(globals)
	if err != nil {
		return outputError(globals, codeStore, err)
	}
	defer e.Close()

	ctx, cancel := commandContext(c.Timeout)
	defer cancel()

	if c.Prefetch {
		fetched, err := e.monitor.Prefetch(ctx, resources)
		if err != nil {
			// Resources without a prefetched checkpoint read the store one by one.
			globals.Log().Warn("prefetching checkpoints failed", zap.Error(err))
		}
		mergePayloads(payloads, fetched)
	}

	report := e.monitor.Extract(ctx, resources, payloads)
	if err := output.NewEmitter(globals.Format, globals.Stdout).Extract(report); err != nil {
		return err
	}

	if err := report.Err(); err != nil {
		globals.Debug("extraction failures: %v", err)
		return &CLIError{Code: codeExtract, Message: fmt.Sprintf("%d of %d resources failed", len(report.Failures()), len(report.Results))}
	}
	if report.Partial {
		return &CLIError{Code: codeExtract, Message: "extraction stopped before every resource finished"}
	}
	return nil
}

// readPayloads reads caller checkpoints keyed by resource type, then resource name
func readPayloads(path string) (monitor.Payloads, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]time.Time
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse checkpoints %s: %w", path, err)
	}

	out := make(monitor.Payloads, len(raw))
	for tag, byName := range raw {
		rt, err := domain.ParseResourceType(tag)
		if err != nil {
			return nil, fmt.Errorf("checkpoints %s: %w", path, err)
		}
		out[rt] = checkpoint.Payload(byName)
	}
	return out, nil
}

// mergePayloads adds fetched checkpoints without overriding the caller's
func mergePayloads(dst, fetched monitor.Payloads) {
	for rt, p := range fetched {
		if dst[rt] == nil {
			dst[rt] = make(checkpoint.Payload, len(p))
		}
		for name, t := range p {
			if _, ok := dst[rt][name]; !ok {
				dst[rt][name] = t
			}
		}
	}
}
