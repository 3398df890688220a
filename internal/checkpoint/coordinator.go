package checkpoint

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/store"
)

// Payload carries checkpoints supplied by the calling batch, keyed by resource name
type Payload map[string]time.Time

// Checkpoints converts the payload into a list of checkpoints
func (p Payload) Checkpoints() []domain.Checkpoint {
	out := make([]domain.Checkpoint, 0, len(p))
	for name, t := range p {
		out = append(out, domain.Checkpoint{ResourceName: name, SinceTime: t})
	}
	return out
}

// Reader is the part of the metrics store the coordinator needs
type Reader interface {
	MaxTime(ctx context.Context, rt domain.ResourceType, resource string) (time.Time, bool, error)
	MaxTimes(ctx context.Context, rt domain.ResourceType) (map[string]time.Time, error)
	EarliestWritableTime(ctx context.Context) (time.Time, error)
	IsEmpty(ctx context.Context, table string) (bool, error)
}

// Coordinator resolves, per resource, the earliest time to query new activity from
type Coordinator struct {
	store  Reader
	logger *zap.Logger
}

// NewCoordinator creates a coordinator over a metrics store
func NewCoordinator(s Reader, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: s, logger: logger}
}

// SinceTime clamps a candidate checkpoint to the retention floor. Without a
// candidate the floor itself is used.
func SinceTime(candidate *time.Time, floor time.Time) time.Time {
	if candidate == nil || candidate.Before(floor) {
		return floor
	}
	return *candidate
}

// Resolve returns the since-time of one resource. The store checkpoint (when the
// payload has none) and the retention floor are read concurrently; any read
// failure is returned as a *domain.ResourceError and no default is substituted.
func (c *Coordinator) Resolve(ctx context.Context, res domain.Resource, payload Payload) (time.Time, error) {
	var (
		candidate *time.Time
		floor     time.Time
	)
	t, fromPayload := payload[res.Name]
	if fromPayload {
		candidate = &t
	}

	g, gctx := errgroup.WithContext(ctx)
	if candidate == nil {
		g.Go(func() error {
			t, ok, err := c.store.MaxTime(gctx, res.Type, res.Name)
			if err != nil {
				return &domain.ResourceError{Type: res.Type, Resource: res.Name, Op: "max_time", Err: err}
			}
			if ok {
				candidate = &t
			}
			return nil
		})
	}
	g.Go(func() error {
		t, err := c.store.EarliestWritableTime(gctx)
		if err != nil {
			return &domain.ResourceError{Type: res.Type, Resource: res.Name, Op: "earliest_writable_time", Err: err}
		}
		floor = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return time.Time{}, err
	}

	since := SinceTime(candidate, floor)
	c.logger.Debug("resolved since-time",
		zap.String("resource", res.Key()),
		zap.Bool("from_payload", fromPayload),
		zap.Time("floor", floor),
		zap.Time("since", since),
	)
	return since, nil
}

// ResolveType resolves every resource of one type. The retention floor is read
// once; if it cannot be read the whole type fails with a *domain.TypeError.
// Per-resource failures are returned in the error map and do not stop the others.
func (c *Coordinator) ResolveType(ctx context.Context, rt domain.ResourceType, resources []domain.Resource, payload Payload) (map[string]time.Time, map[string]error, error) {
	floor, err := c.store.EarliestWritableTime(ctx)
	if err != nil {
		return nil, nil, &domain.TypeError{
			Type: rt,
			Op:   "earliest_writable_time",
			Err:  errors.Join(domain.ErrRetentionFloorUnavailable, err),
		}
	}

	empty, err := c.store.IsEmpty(ctx, store.TableName(rt))
	if err != nil {
		c.logger.Warn("cannot tell whether metrics table is empty, querying per resource",
			zap.String("type", string(rt)), zap.Error(err))
		empty = false
	}

	since := make(map[string]time.Time, len(resources))
	failures := make(map[string]error)
	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			failures[res.Name] = &domain.ResourceError{Type: rt, Resource: res.Name, Op: "resolve", Err: err}
			continue
		}
		var candidate *time.Time
		if t, ok := payload[res.Name]; ok {
			candidate = &t
		} else if !empty {
			t, ok, err := c.store.MaxTime(ctx, rt, res.Name)
			if err != nil {
				failures[res.Name] = &domain.ResourceError{Type: rt, Resource: res.Name, Op: "max_time", Err: err}
				continue
			}
			if ok {
				candidate = &t
			}
		}
		since[res.Name] = SinceTime(candidate, floor)
	}
	return since, failures, nil
}

// Prefetch reads the checkpoints of every resource of a type in one store call,
// producing a payload for a later ResolveType.
func (c *Coordinator) Prefetch(ctx context.Context, rt domain.ResourceType) (Payload, error) {
	times, err := c.store.MaxTimes(ctx, rt)
	if err != nil {
		return nil, &domain.TypeError{Type: rt, Op: "max_times", Err: err}
	}
	return Payload(times), nil
}
