package optics

import (
	"errors"
	"fmt"
	"strings"
)

// RayTrace folds a seed ray through a sequence of operators, keeping
// every intermediate ray. A trace moves through three shapes: empty
// (no rays), seeded (exactly the initial ray), traced (the initial ray
// plus one output per operator). Trace only runs on a seeded trace.
type RayTrace struct {
	rays  []Ray
	label string
	warn  func(msg string)
}

// TraceOption configures a RayTrace.
type TraceOption func(*RayTrace)

// WithTraceLabel sets the trace label.
func WithTraceLabel(label string) TraceOption {
	return func(rt *RayTrace) { rt.label = label }
}

// WithWarnings routes the warnings emitted by Run's self-heal to fn.
// The default discards them.
func WithWarnings(fn func(msg string)) TraceOption {
	return func(rt *RayTrace) { rt.warn = fn }
}

// NewRayTrace builds a trace seeded with the given ray.
func NewRayTrace(seed Ray, opts ...TraceOption) *RayTrace {
	rt := &RayTrace{rays: []Ray{seed}, warn: func(string) {}}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Initialize resets the trace to hold only the given seed ray.
func (rt *RayTrace) Initialize(seed Ray) {
	rt.rays = rt.rays[:0]
	rt.rays = append(rt.rays, seed)
}

// Trace applies the operators in order, appending each output ray.
// When setZ is true the operator's z field is updated to the resulting
// ray's z after each step; setZ must be false whenever operators are
// shared between traces, as in batch runs.
func (rt *RayTrace) Trace(ops []OpticalOperator, setZ bool) error {
	switch {
	case len(rt.rays) == 0:
		return fmt.Errorf("%w: trace %q", ErrNotSeeded, rt.label)
	case len(rt.rays) > 1:
		return fmt.Errorf("%w: trace %q holds %d rays", ErrRetrace, rt.label, len(rt.rays))
	}
	for _, op := range ops {
		if op == nil {
			continue
		}
		out := op.Apply(rt.rays[len(rt.rays)-1])
		rt.rays = append(rt.rays, out)
		if setZ {
			op.SetZ(out.Z)
		}
	}
	return nil
}

// Run is Trace with one self-heal: when the trace was already run, it
// warns, reseeds from the trace's first ray and tries again. A second
// failure, or any failure other than a retrace, propagates.
func (rt *RayTrace) Run(ops []OpticalOperator, setZ bool) error {
	err := rt.Trace(ops, setZ)
	if err == nil || !errors.Is(err, ErrRetrace) {
		return err
	}
	if rt.warn != nil {
		rt.warn(fmt.Sprintf("reinitializing trace %q from its first ray", rt.label))
	}
	rt.Initialize(rt.rays[0])
	return rt.Trace(ops, setZ)
}

// Rays returns a copy of the accumulated rays in trace order.
func (rt *RayTrace) Rays() []Ray {
	out := make([]Ray, len(rt.rays))
	copy(out, rt.rays)
	return out
}

// Len reports the number of accumulated rays.
func (rt *RayTrace) Len() int { return len(rt.rays) }

// At returns the i-th ray of the trace.
func (rt *RayTrace) At(i int) Ray { return rt.rays[i] }

// First returns the seed ray.
func (rt *RayTrace) First() Ray { return rt.rays[0] }

// Last returns the most recent ray.
func (rt *RayTrace) Last() Ray { return rt.rays[len(rt.rays)-1] }

func (rt *RayTrace) Label() string     { return rt.label }
func (rt *RayTrace) SetLabel(l string) { rt.label = l }

func (rt *RayTrace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RayTrace %q:", rt.label)
	for _, r := range rt.rays {
		b.WriteString("\n\t")
		b.WriteString(r.String())
	}
	return b.String()
}
