package optics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// OpticalSystem is an ordered arrangement of operators between one
// source and one screen. Operators are kept in beam order (descending
// z) with exactly one free-space propagator between consecutive
// physical elements; Fill establishes and maintains that shape.
//
// The system itself is not safe for concurrent mutation; callers that
// share one across goroutines serialize access themselves.
type OpticalSystem struct {
	source *Source
	screen *Screen
	label  string

	operators []OpticalOperator
}

// NewOpticalSystem assembles a system from a source, physical
// operators and a screen, then fills the free-space gaps. The operator
// slice may be nil for an empty bench.
func NewOpticalSystem(source *Source, operators []OpticalOperator, screen *Screen, label string) (*OpticalSystem, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if screen == nil {
		return nil, ErrNilScreen
	}
	if label == "" {
		label = "Optical system"
	}
	s := &OpticalSystem{source: source, screen: screen, label: label}
	for _, op := range operators {
		if op == nil {
			return nil, ErrNilOperator
		}
		s.operators = append(s.operators, op)
	}
	if err := s.Fill(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OpticalSystem) Source() *Source { return s.source }
func (s *OpticalSystem) Screen() *Screen { return s.screen }

// SetSource swaps the emitter; the gaps are not re-filled until the
// next Fill, Add or Remove.
func (s *OpticalSystem) SetSource(src *Source) error {
	if src == nil {
		return ErrNilSource
	}
	s.source = src
	return nil
}

// SetScreen swaps the terminal plane; same re-fill rules as SetSource.
func (s *OpticalSystem) SetScreen(scr *Screen) error {
	if scr == nil {
		return ErrNilScreen
	}
	s.screen = scr
	return nil
}

func (s *OpticalSystem) Label() string     { return s.label }
func (s *OpticalSystem) SetLabel(l string) { s.label = l }

// Len reports the number of operators, synthesized propagators
// included.
func (s *OpticalSystem) Len() int { return len(s.operators) }

// LenOf reports the number of operators of one kind.
func (s *OpticalSystem) LenOf(kind Kind) int {
	n := 0
	for _, op := range s.operators {
		if op.Kind() == kind {
			n++
		}
	}
	return n
}

// Operators returns a copy of the operator list in beam order. The
// elements are shared; callers must not mutate them while traces run.
func (s *OpticalSystem) Operators() []OpticalOperator {
	out := make([]OpticalOperator, len(s.operators))
	copy(out, s.operators)
	return out
}

// Operator returns the operator uniquely carrying the given label. The
// scan happens at call time, so in-place relabels are picked up
// immediately.
func (s *OpticalSystem) Operator(label string) (OpticalOperator, error) {
	var found OpticalOperator
	matches := 0
	for _, op := range s.operators {
		if op.Label() == label {
			found = op
			matches++
		}
	}
	switch {
	case matches == 0:
		return nil, fmt.Errorf("%w %q in system %q", ErrOperatorNotFound, label, s.label)
	case matches > 1:
		return nil, fmt.Errorf("%w: %d operators labelled %q in system %q", ErrAmbiguousLabel, matches, label, s.label)
	}
	return found, nil
}

// Add appends an operator and re-fills the gaps.
func (s *OpticalSystem) Add(op OpticalOperator) error {
	if op == nil {
		return ErrNilOperator
	}
	s.operators = append(s.operators, op)
	return s.Fill()
}

// Remove deletes the operator uniquely carrying the given label and
// re-fills the gaps.
func (s *OpticalSystem) Remove(label string) error {
	op, err := s.Operator(label)
	if err != nil {
		return err
	}
	kept := s.operators[:0]
	for _, o := range s.operators {
		if o != op {
			kept = append(kept, o)
		}
	}
	s.operators = kept
	return s.Fill()
}

// SortOperators orders the operators in beam order: descending z, and
// at equal z the propagator ahead of the physical element it feeds.
func (s *OpticalSystem) SortOperators() {
	sort.SliceStable(s.operators, func(i, j int) bool {
		a, b := s.operators[i], s.operators[j]
		if a.Z() != b.Z() {
			return a.Z() > b.Z()
		}
		return a.Kind() == KindPropagator && b.Kind() != KindPropagator
	})
}

// Fill rebuilds the free-space propagators: every existing propagator
// is dropped, the physical elements are sorted into beam order, and
// one synthesized propagator spans each gap from the source down to
// the screen. Gap lengths are positive (upstream z minus downstream z)
// and each propagator sits at its downstream plane. Labels run "S0",
// "S1", ... from the source side; a clash with a remaining operator
// label is an error. Filling an already filled system is a no-op in
// effect.
func (s *OpticalSystem) Fill() error {
	phys := make([]OpticalOperator, 0, len(s.operators))
	for _, op := range s.operators {
		if op.Kind() != KindPropagator {
			phys = append(phys, op)
		}
	}
	s.operators = phys
	s.SortOperators()

	props := make([]OpticalOperator, 0, len(phys)+1)
	if len(phys) == 0 {
		props = append(props, NewPropagator(s.source.z-s.screen.z,
			WithZ(s.screen.z), WithLabel("S0")))
	} else {
		props = append(props, NewPropagator(s.source.z-phys[0].Z(),
			WithZ(phys[0].Z()), WithLabel("S0")))
		for i := 0; i < len(phys)-1; i++ {
			props = append(props, NewPropagator(phys[i].Z()-phys[i+1].Z(),
				WithZ(phys[i+1].Z()), WithLabel(fmt.Sprintf("S%d", i+1))))
		}
		props = append(props, NewPropagator(phys[len(phys)-1].Z()-s.screen.z,
			WithZ(s.screen.z), WithLabel(fmt.Sprintf("S%d", len(phys)))))
	}

	for _, p := range props {
		for _, op := range phys {
			if op.Label() == p.Label() {
				return fmt.Errorf("%w: synthesized %q already taken in system %q",
					ErrLabelCollision, p.Label(), s.label)
			}
		}
	}

	s.operators = append(s.operators, props...)
	s.SortOperators()
	return nil
}

// Trace emits every source ray and folds each through the operator
// list, returning one trace per ray labelled "RT0", "RT1", ... in
// emission order. Operator z positions are never touched.
func (s *OpticalSystem) Trace() ([]*RayTrace, error) {
	return s.traceRays(s.source.Emit(), 0)
}

// TraceParallel is Trace with the rays partitioned across a pool of
// workers. Results keep emission order; workers of one or fewer runs
// sequentially.
func (s *OpticalSystem) TraceParallel(workers int) ([]*RayTrace, error) {
	rays := s.source.Emit()
	if workers <= 1 || len(rays) <= 1 {
		return s.traceRays(rays, 0)
	}
	if workers > len(rays) {
		workers = len(rays)
	}

	traces := make([]*RayTrace, len(rays))
	errs := make([]error, workers)
	chunk := (len(rays) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(rays))
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			part, err := s.traceRays(rays[lo:hi], lo)
			if err != nil {
				errs[w] = err
				return
			}
			copy(traces[lo:], part)
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return traces, nil
}

// traceRays folds each seed ray through the operators with trace
// labels numbered from first.
func (s *OpticalSystem) traceRays(rays []Ray, first int) ([]*RayTrace, error) {
	traces := make([]*RayTrace, 0, len(rays))
	for i, seed := range rays {
		rt := NewRayTrace(seed, WithTraceLabel(fmt.Sprintf("RT%d", first+i)))
		if err := rt.Trace(s.operators, false); err != nil {
			return nil, err
		}
		traces = append(traces, rt)
	}
	return traces, nil
}

func (s *OpticalSystem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n-%s", s.label, s.source)
	for _, op := range s.operators {
		fmt.Fprintf(&b, "\n-%s", op)
	}
	fmt.Fprintf(&b, "\n-%s", s.screen)
	return b.String()
}
