package state

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lensworks/raybench/internal/logging"
	"github.com/lensworks/raybench/optics"
)

// Trace modes as reported in results and metrics labels.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// TraceRequest selects how a batch trace runs.
type TraceRequest struct {
	// Workers above one shards rays across that many goroutines.
	Workers int

	// Archive persists the result when an archive sink is configured.
	Archive bool
}

// RayPoint is one recorded station along a traced ray.
type RayPoint struct {
	X     float64
	Angle float64
	Z     float64
	Label string
}

// TraceSnapshot is the full path of one ray, seed first.
type TraceSnapshot struct {
	Label  string
	Points []RayPoint
}

// TraceResult reports one completed batch trace.
type TraceResult struct {
	SessionID   string
	SystemLabel string
	Mode        string
	Workers     int
	StartedAt   time.Time
	Duration    time.Duration
	Operators   int
	Traces      []TraceSnapshot
	Archived    bool
}

// TraceArchiver persists completed trace sessions. Implementations
// must be safe for concurrent use.
type TraceArchiver interface {
	SaveSession(ctx context.Context, res *TraceResult) error
}

// RunTrace emits the source rays and folds each one through the bench.
// The system is not mutated; traces run under the read lock so
// concurrent bench edits wait their turn. An archive failure does not
// fail the trace; it is logged and reported through Archived.
func (b *BenchState) RunTrace(ctx context.Context, req TraceRequest) (*TraceResult, error) {
	ctx, reqLog := logging.WithRequestLogger(ctx, b.log)
	start := time.Now()

	b.mu.RLock()
	var (
		traces []*optics.RayTrace
		err    error
	)
	mode := ModeSequential
	if req.Workers > 1 {
		mode = ModeParallel
		traces, err = b.system.TraceParallel(req.Workers)
	} else {
		traces, err = b.system.Trace()
	}
	if err != nil {
		b.mu.RUnlock()
		return nil, err
	}
	res := &TraceResult{
		SessionID:   uuid.NewString(),
		SystemLabel: b.system.Label(),
		Mode:        mode,
		Workers:     req.Workers,
		StartedAt:   start,
		Operators:   b.system.Len(),
		Traces:      traceSnapshots(traces),
	}
	subs := b.subscribersLocked()
	b.mu.RUnlock()

	res.Duration = time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordTrace(mode, len(res.Traces), res.Duration)
	}

	if req.Archive && b.archive != nil {
		if err := b.archive.SaveSession(ctx, res); err != nil {
			reqLog.Error(ctx, "archiving trace session failed",
				logging.String("session_id", res.SessionID),
				logging.Err(err),
			)
		} else {
			res.Archived = true
			if b.metrics != nil {
				b.metrics.RecordArchiveWrite()
			}
		}
	}

	reqLog.Debug(ctx, "trace completed",
		logging.String("session_id", res.SessionID),
		logging.String("mode", mode),
		logging.Int("rays", len(res.Traces)),
		logging.Int("operators", res.Operators),
		logging.Duration("elapsed", res.Duration),
		logging.Any("archived", res.Archived),
	)

	deliver(subs, Event{Type: EventTraceCompleted, SessionID: res.SessionID, Rays: len(res.Traces)})
	return res, nil
}

func traceSnapshots(traces []*optics.RayTrace) []TraceSnapshot {
	out := make([]TraceSnapshot, 0, len(traces))
	for _, rt := range traces {
		if rt == nil {
			continue
		}
		rays := rt.Rays()
		points := make([]RayPoint, len(rays))
		for i, r := range rays {
			points[i] = RayPoint{X: r.X, Angle: r.Angle, Z: r.Z, Label: r.Label}
		}
		out = append(out, TraceSnapshot{Label: rt.Label(), Points: points})
	}
	return out
}
