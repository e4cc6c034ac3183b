// Package state owns the mutable optical bench shared by the HTTP API
// and the CLI: one optical system behind a coarse lock, entity gauges,
// an optional trace archive, and event fan-out for watchers.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lensworks/raybench/internal/logging"
	"github.com/lensworks/raybench/optics"
)

// Re-export core sentinel errors so callers can depend on state.*
// instead of optics.* directly if they want to.
var (
	// ErrOperatorNotFound indicates a requested element was not found.
	ErrOperatorNotFound = optics.ErrOperatorNotFound
	// ErrAmbiguousLabel indicates a label matched more than one element.
	ErrAmbiguousLabel = optics.ErrAmbiguousLabel
	// ErrLabelCollision indicates an element label collides with a
	// synthesized free-space label.
	ErrLabelCollision = optics.ErrLabelCollision
	// ErrInvalidValue indicates an input failed core validation.
	ErrInvalidValue = optics.ErrInvalidValue
	// ErrUnknownKind indicates an unrecognised element kind.
	ErrUnknownKind = optics.ErrUnknownKind
	// ErrOperatorInvalid indicates an element spec failed validation.
	ErrOperatorInvalid = errors.New("state: invalid operator spec")
	// ErrOperatorExists indicates an element label is already taken.
	ErrOperatorExists = errors.New("state: operator already exists")
)

// BenchState coordinates the bench's optical system and the transient
// side effects of mutating it.
type BenchState struct {
	// mu is the coarse bench-level lock. Take it before touching the
	// system; the optics types carry no locks of their own.
	mu sync.RWMutex

	// system is the bench under management. Mutators that change the
	// element layout re-fill it so the free-space gaps stay consistent.
	system *optics.OpticalSystem

	// subs holds event subscribers; entries are removed through the
	// unsubscribe closures handed out by Subscribe.
	subs    []subscriber
	nextSub int

	// log is an optional structured logger for bench-level events.
	log logging.Logger

	// metrics is an optional recorder for Prometheus-friendly gauges.
	metrics BenchMetricsRecorder

	// archive optionally persists completed trace sessions.
	archive TraceArchiver
}

// BenchMetricsRecorder receives entity-count and trace updates.
type BenchMetricsRecorder interface {
	SetSystemCounts(propagators, lenses, deflectors int)
	RecordFill()
	RecordTrace(mode string, rays int, elapsed time.Duration)
	RecordArchiveWrite()
}

// Option customises BenchState construction.
type Option func(*BenchState)

// WithLogger attaches a structured logger for bench-level events.
func WithLogger(log logging.Logger) Option {
	return func(b *BenchState) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder for entity
// counts and trace timings.
func WithMetricsRecorder(m BenchMetricsRecorder) Option {
	return func(b *BenchState) {
		b.metrics = m
	}
}

// WithArchive attaches a persistence sink for completed trace sessions.
func WithArchive(a TraceArchiver) Option {
	return func(b *BenchState) {
		b.archive = a
	}
}

// NewBenchState wraps an optical system for concurrent use.
func NewBenchState(sys *optics.OpticalSystem, opts ...Option) (*BenchState, error) {
	if sys == nil {
		return nil, errors.New("state: nil optical system")
	}
	b := &BenchState{
		system: sys,
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.updateMetricsLocked()
	return b, nil
}

// Snapshot returns a coherent copy of the bench.
func (b *BenchState) Snapshot() *SystemSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &SystemSnapshot{
		Label:     b.system.Label(),
		Source:    sourceSnapshot(b.system.Source()),
		Screen:    screenSnapshot(b.system.Screen()),
		Operators: operatorSnapshots(b.system.Operators()),
	}
}

// OperatorSpec describes one element to place on the bench. Free-space
// propagators cannot be added directly; fill synthesizes them.
type OperatorSpec struct {
	Kind   optics.Kind
	Value  float64
	Offset float64
	Size   float64
	Z      float64
	Label  string
}

func operatorFromSpec(spec OperatorSpec) (optics.OpticalOperator, error) {
	if spec.Label == "" {
		return nil, fmt.Errorf("%w: empty label", ErrOperatorInvalid)
	}
	opts := []optics.Option{
		optics.WithOffset(spec.Offset),
		optics.WithSize(spec.Size),
		optics.WithZ(spec.Z),
		optics.WithLabel(spec.Label),
	}
	switch spec.Kind {
	case optics.KindLens:
		return optics.NewLens(spec.Value, opts...), nil
	case optics.KindDeflector:
		return optics.NewDeflector(spec.Value, opts...), nil
	case optics.KindPropagator:
		return nil, fmt.Errorf("%w: free-space gaps are synthesized by fill", ErrOperatorInvalid)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, spec.Kind)
	}
}

// AddOperator places a new element on the bench and re-fills the
// free-space gaps around it. Labels are unique bench-wide; a label
// already carried by any element, synthesized gaps included, is
// rejected.
func (b *BenchState) AddOperator(spec OperatorSpec) (OperatorSnapshot, error) {
	op, err := operatorFromSpec(spec)
	if err != nil {
		return OperatorSnapshot{}, err
	}

	b.mu.Lock()
	if _, lookupErr := b.system.Operator(spec.Label); !errors.Is(lookupErr, ErrOperatorNotFound) {
		b.mu.Unlock()
		return OperatorSnapshot{}, fmt.Errorf("%w: %q", ErrOperatorExists, spec.Label)
	}
	if err := b.system.Add(op); err != nil {
		_ = b.system.Remove(spec.Label)
		b.mu.Unlock()
		return OperatorSnapshot{}, err
	}
	b.recordFillLocked()
	b.updateMetricsLocked()
	snap := operatorSnapshot(op)
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventOperatorAdded, Label: snap.Label})
	return snap, nil
}

// RemoveOperator removes the element with the given label and re-fills
// the gaps it leaves behind.
func (b *BenchState) RemoveOperator(label string) error {
	b.mu.Lock()
	if err := b.system.Remove(label); err != nil {
		b.mu.Unlock()
		return err
	}
	b.recordFillLocked()
	b.updateMetricsLocked()
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventOperatorRemoved, Label: label})
	return nil
}

// OperatorUpdate carries optional field changes for one element. Nil
// fields are left as they are.
type OperatorUpdate struct {
	Value  *float64
	Offset *float64
	Size   *float64
	Z      *float64
	Label  *string
}

// UpdateOperator patches fields on an existing element. It does not
// re-fill the bench; callers that move elements axially should follow
// up with Fill.
func (b *BenchState) UpdateOperator(label string, upd OperatorUpdate) (OperatorSnapshot, error) {
	b.mu.Lock()
	op, err := b.system.Operator(label)
	if err != nil {
		b.mu.Unlock()
		return OperatorSnapshot{}, err
	}
	if upd.Label != nil && *upd.Label != op.Label() {
		if *upd.Label == "" {
			b.mu.Unlock()
			return OperatorSnapshot{}, fmt.Errorf("%w: empty label", ErrOperatorInvalid)
		}
		if _, lookupErr := b.system.Operator(*upd.Label); !errors.Is(lookupErr, ErrOperatorNotFound) {
			b.mu.Unlock()
			return OperatorSnapshot{}, fmt.Errorf("%w: %q", ErrOperatorExists, *upd.Label)
		}
	}
	if upd.Value != nil {
		op.SetValue(*upd.Value)
	}
	if upd.Offset != nil {
		op.SetOffset(*upd.Offset)
	}
	if upd.Size != nil {
		op.SetSize(*upd.Size)
	}
	if upd.Z != nil {
		op.SetZ(*upd.Z)
	}
	if upd.Label != nil {
		op.SetLabel(*upd.Label)
	}
	snap := operatorSnapshot(op)
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventOperatorUpdated, Label: snap.Label})
	return snap, nil
}

// SourceSpec describes the emitter configuration. A zero Points keeps
// the single-point default.
type SourceSpec struct {
	Z         float64
	Offset    float64
	Size      float64
	Points    int
	AnglesDeg []float64
	Label     string
}

func sourceFromSpec(spec SourceSpec) (*optics.Source, error) {
	src, err := optics.NewSource(spec.Z, spec.AnglesDeg)
	if err != nil {
		return nil, err
	}
	if spec.Points != 0 {
		if err := src.SetPoints(spec.Points); err != nil {
			return nil, err
		}
	}
	src.SetOffset(spec.Offset)
	src.SetSize(spec.Size)
	if spec.Label != "" {
		src.SetLabel(spec.Label)
	}
	return src, nil
}

// SetSource replaces the bench emitter and re-fills the free-space
// gaps, since the entry gap is measured from the source plane.
func (b *BenchState) SetSource(spec SourceSpec) (SourceSnapshot, error) {
	src, err := sourceFromSpec(spec)
	if err != nil {
		return SourceSnapshot{}, err
	}

	b.mu.Lock()
	if err := b.system.SetSource(src); err != nil {
		b.mu.Unlock()
		return SourceSnapshot{}, err
	}
	if err := b.system.Fill(); err != nil {
		b.mu.Unlock()
		return SourceSnapshot{}, err
	}
	b.recordFillLocked()
	b.updateMetricsLocked()
	snap := sourceSnapshot(src)
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventSourceUpdated})
	return snap, nil
}

// ScreenSpec describes the terminal plane.
type ScreenSpec struct {
	Z     float64
	Label string
}

// SetScreen replaces the bench terminal plane and re-fills the
// free-space gaps, since the exit gap ends at the screen plane.
func (b *BenchState) SetScreen(spec ScreenSpec) (ScreenSnapshot, error) {
	scr, err := optics.NewScreen(spec.Z)
	if err != nil {
		return ScreenSnapshot{}, err
	}
	if spec.Label != "" {
		scr.SetLabel(spec.Label)
	}

	b.mu.Lock()
	if err := b.system.SetScreen(scr); err != nil {
		b.mu.Unlock()
		return ScreenSnapshot{}, err
	}
	if err := b.system.Fill(); err != nil {
		b.mu.Unlock()
		return ScreenSnapshot{}, err
	}
	b.recordFillLocked()
	b.updateMetricsLocked()
	snap := screenSnapshot(scr)
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventScreenUpdated})
	return snap, nil
}

// Fill rebuilds the synthesized free-space gaps between elements.
func (b *BenchState) Fill() error {
	b.mu.Lock()
	if err := b.system.Fill(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.recordFillLocked()
	b.updateMetricsLocked()
	subs := b.subscribersLocked()
	b.mu.Unlock()

	deliver(subs, Event{Type: EventSystemFilled})
	return nil
}

// recordFillLocked counts one completed fill. Caller must hold b.mu.
func (b *BenchState) recordFillLocked() {
	if b.metrics != nil {
		b.metrics.RecordFill()
	}
}

// updateMetricsLocked pushes current element counts into the metrics
// recorder. Caller must hold b.mu.
func (b *BenchState) updateMetricsLocked() {
	if b == nil || b.metrics == nil {
		return
	}
	b.metrics.SetSystemCounts(
		b.system.LenOf(optics.KindPropagator),
		b.system.LenOf(optics.KindLens),
		b.system.LenOf(optics.KindDeflector),
	)
}
