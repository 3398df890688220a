package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/monitor"
	"github.com/vburojevic/runwatch/internal/registry"
	"github.com/vburojevic/runwatch/internal/source"
	"github.com/vburojevic/runwatch/internal/store"
)

// env is everything a monitoring command runs against
type env struct {
	registry *registry.Registry
	store    *store.SQLite
	monitor  *monitor.Monitor
}

// openEnv opens the metrics store and wires the monitor from the configuration
func openEnv(globals *Globals) (*env, error) {
	cfg := globals.Config
	retention, err := cfg.RetentionPeriod()
	if err != nil {
		return nil, err
	}

	logger := globals.Log()
	st, err := store.OpenSQLite(cfg.Store.Path, store.Options{
		Retention: retention,
		Clock:     globals.clock(),
		Logger:    logger.Named("store"),
	})
	if err != nil {
		return nil, err
	}
	globals.Debug("opened metrics store %s (retention %s)", cfg.Store.Path, retention)

	reg := registry.Default(logger.Named("registry"))
	src := source.NewDir(cfg.Source.Dir, logger.Named("source"))
	return &env{
		registry: reg,
		store:    st,
		monitor: monitor.New(reg, st, src, monitor.Options{
			Workers: cfg.Workers,
			Clock:   globals.clock(),
			Logger:  logger.Named("monitor"),
		}),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// selectResources returns the configured resources, optionally narrowed to
// some resource types and groups
func selectResources(globals *Globals, types, groups []string) ([]domain.Resource, error) {
	resources, err := globals.Config.Resources()
	if err != nil {
		return nil, err
	}

	var wanted []domain.ResourceType
	for _, tag := range types {
		rt, err := domain.ParseResourceType(tag)
		if err != nil {
			return nil, err
		}
		wanted = append(wanted, rt)
	}

	out := resources[:0]
	for _, r := range resources {
		if len(wanted) > 0 && !slices.Contains(wanted, r.Type) {
			continue
		}
		if len(groups) > 0 && !slices.Contains(groups, r.Group) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resources selected (config has %d)", len(resources))
	}
	return out, nil
}

// commandContext ends on SIGINT/SIGTERM and, when timeout is positive, after timeout
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
