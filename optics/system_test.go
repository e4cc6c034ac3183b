package optics

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func newTestSource(t *testing.T, z float64, anglesDeg []float64) *Source {
	t.Helper()
	s, err := NewSource(z, anglesDeg)
	if err != nil {
		t.Fatalf("NewSource error: %v", err)
	}
	return s
}

func newTestScreen(t *testing.T, z float64) *Screen {
	t.Helper()
	s, err := NewScreen(z)
	if err != nil {
		t.Fatalf("NewScreen error: %v", err)
	}
	return s
}

func newTestSystem(t *testing.T, ops ...OpticalOperator) *OpticalSystem {
	t.Helper()
	sys, err := NewOpticalSystem(newTestSource(t, 100, []float64{0}), ops, newTestScreen(t, 0), "bench")
	if err != nil {
		t.Fatalf("NewOpticalSystem error: %v", err)
	}
	return sys
}

func propagatorValues(sys *OpticalSystem) []float64 {
	var vals []float64
	for _, op := range sys.Operators() {
		if op.Kind() == KindPropagator {
			vals = append(vals, op.Value())
		}
	}
	return vals
}

func TestNewOpticalSystemValidation(t *testing.T) {
	scr := newTestScreen(t, 0)
	src := newTestSource(t, 100, []float64{0})

	if _, err := NewOpticalSystem(nil, nil, scr, ""); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil source should fail, got %v", err)
	}
	if _, err := NewOpticalSystem(src, nil, nil, ""); !errors.Is(err, ErrNilScreen) {
		t.Fatalf("nil screen should fail, got %v", err)
	}
	if _, err := NewOpticalSystem(src, []OpticalOperator{nil}, scr, ""); !errors.Is(err, ErrNilOperator) {
		t.Fatalf("nil operator should fail, got %v", err)
	}
}

func TestFillEmptySystem(t *testing.T) {
	sys := newTestSystem(t)
	if sys.Len() != 1 {
		t.Fatalf("empty bench should fill to a single propagator, got %d operators", sys.Len())
	}
	op := sys.Operators()[0]
	if op.Kind() != KindPropagator || op.Label() != "S0" {
		t.Fatalf("got %v, want propagator S0", op)
	}
	if op.Value() != 100 {
		t.Fatalf("gap length %v, want source z minus screen z", op.Value())
	}
	if op.Z() != 0 {
		t.Fatalf("gap sits at z=%v, want the screen plane", op.Z())
	}
}

func TestFillAlternatesPropagatorsAndElements(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("L1")),
		NewLens(20, WithZ(30), WithLabel("L2")),
	)

	if sys.Len() != 5 {
		t.Fatalf("2 elements need 3 gaps, got %d operators", sys.Len())
	}
	wantLabels := []string{"S0", "L1", "S1", "L2", "S2"}
	for i, op := range sys.Operators() {
		if op.Label() != wantLabels[i] {
			t.Fatalf("operator %d is %q, want %q", i, op.Label(), wantLabels[i])
		}
	}
	wantValues := []float64{20, 50, 30}
	got := propagatorValues(sys)
	for i, v := range got {
		if v != wantValues[i] {
			t.Fatalf("gap %d has length %v, want %v", i, v, wantValues[i])
		}
	}
}

func TestFillGapLengthsTelescope(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(75), WithLabel("L1")),
		NewDeflector(1, WithZ(60), WithLabel("D1")),
		NewLens(5, WithZ(12.5), WithLabel("L2")),
	)
	sum := 0.0
	for _, v := range propagatorValues(sys) {
		sum += v
	}
	if !closeTo(sum, 100, 1e-12) {
		t.Fatalf("gap lengths sum to %v, want source z minus screen z", sum)
	}
}

func TestFillIsIdempotent(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("L1")),
		NewDeflector(2, WithZ(40), WithLabel("D1")),
	)
	before := fmt.Sprint(sys)
	if err := sys.Fill(); err != nil {
		t.Fatalf("second Fill error: %v", err)
	}
	if after := fmt.Sprint(sys); after != before {
		t.Fatalf("Fill is not idempotent:\n%s\nvs\n%s", before, after)
	}
}

// Operators handed to the system out of order must come back sorted in
// beam order, gap propagators ahead of the element they feed.
func TestFillSortsOutOfOrderElements(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(20, WithZ(30), WithLabel("L2")),
		NewLens(10, WithZ(80), WithLabel("L1")),
	)
	labels := make([]string, 0, sys.Len())
	for _, op := range sys.Operators() {
		labels = append(labels, op.Label())
	}
	want := []string{"S0", "L1", "S1", "L2", "S2"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("order %v, want %v", labels, want)
		}
	}
}

func TestFillLabelCollision(t *testing.T) {
	src := newTestSource(t, 100, []float64{0})
	scr := newTestScreen(t, 0)
	_, err := NewOpticalSystem(src, []OpticalOperator{
		NewLens(10, WithZ(50), WithLabel("S1")),
	}, scr, "")
	if !errors.Is(err, ErrLabelCollision) {
		t.Fatalf("element labelled like a synthesized gap should fail, got %v", err)
	}
}

func TestAddReFills(t *testing.T) {
	sys := newTestSystem(t, NewLens(10, WithZ(80), WithLabel("L1")))
	if sys.Len() != 3 {
		t.Fatalf("one element should fill to 3 operators, got %d", sys.Len())
	}
	if err := sys.Add(NewLens(20, WithZ(30), WithLabel("L2"))); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if sys.Len() != 5 {
		t.Fatalf("two elements should fill to 5 operators, got %d", sys.Len())
	}
	if sys.LenOf(KindPropagator) != 3 {
		t.Fatalf("expected 3 gaps, got %d", sys.LenOf(KindPropagator))
	}
	if err := sys.Add(nil); !errors.Is(err, ErrNilOperator) {
		t.Fatalf("Add(nil) should fail, got %v", err)
	}
}

func TestRemoveReFills(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("L1")),
		NewLens(20, WithZ(30), WithLabel("L2")),
	)
	if err := sys.Remove("L1"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if sys.LenOf(KindLens) != 1 {
		t.Fatalf("lens count %d after removal, want 1", sys.LenOf(KindLens))
	}
	if sys.Len() != 3 {
		t.Fatalf("system should re-fill to 3 operators, got %d", sys.Len())
	}
	sum := 0.0
	for _, v := range propagatorValues(sys) {
		sum += v
	}
	if sum != 100 {
		t.Fatalf("gaps no longer telescope after removal: %v", sum)
	}

	if err := sys.Remove("missing"); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("removing an unknown label should fail, got %v", err)
	}
}

func TestOperatorLookup(t *testing.T) {
	lens := NewLens(10, WithZ(80), WithLabel("L1"))
	sys := newTestSystem(t, lens)

	got, err := sys.Operator("L1")
	if err != nil {
		t.Fatalf("Operator error: %v", err)
	}
	if got != OpticalOperator(lens) {
		t.Fatalf("lookup returned %v, want the lens itself", got)
	}

	if _, err := sys.Operator("nope"); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("unknown label should fail with ErrOperatorNotFound, got %v", err)
	}
}

func TestOperatorLookupAmbiguous(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("twin")),
		NewLens(20, WithZ(30), WithLabel("twin")),
	)
	if _, err := sys.Operator("twin"); !errors.Is(err, ErrAmbiguousLabel) {
		t.Fatalf("duplicate label should fail with ErrAmbiguousLabel, got %v", err)
	}
}

// Relabelling an operator in place is picked up by the next lookup.
func TestOperatorLookupSeesInPlaceRelabel(t *testing.T) {
	lens := NewLens(10, WithZ(80), WithLabel("L1"))
	sys := newTestSystem(t, lens)
	lens.SetLabel("renamed")
	if _, err := sys.Operator("L1"); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("old label should be gone, got %v", err)
	}
	if _, err := sys.Operator("renamed"); err != nil {
		t.Fatalf("new label not found: %v", err)
	}
}

func TestLenOfCounts(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("L1")),
		NewDeflector(1, WithZ(40), WithLabel("D1")),
	)
	if n := sys.LenOf(KindLens); n != 1 {
		t.Fatalf("lens count %d, want 1", n)
	}
	if n := sys.LenOf(KindDeflector); n != 1 {
		t.Fatalf("deflector count %d, want 1", n)
	}
	if n := sys.LenOf(KindPropagator); n != 3 {
		t.Fatalf("gap count %d, want 3", n)
	}
	if sys.Len() != 5 {
		t.Fatalf("total %d, want 5", sys.Len())
	}
}

func TestTraceAxialRayStaysAxial(t *testing.T) {
	sys := newTestSystem(t,
		NewLens(10, WithZ(80), WithLabel("L1")),
		NewDeflector(0, WithZ(40), WithLabel("D1")),
	)
	traces, err := sys.Trace()
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if len(traces) != 1 {
		t.Fatalf("expected a single trace, got %d", len(traces))
	}
	for _, r := range traces[0].Rays() {
		if r.X != 0 || r.Angle != 0 {
			t.Fatalf("axial ray drifted at %v", r)
		}
	}
	if traces[0].Last().Z != 0 {
		t.Fatalf("trace should end at the screen plane, z = %v", traces[0].Last().Z)
	}
}

func TestTraceEndsAtScreen(t *testing.T) {
	sys, err := NewOpticalSystem(
		newTestSource(t, 100, []float64{0, 0.5, 1}),
		[]OpticalOperator{
			NewLens(10, WithZ(50), WithLabel("L1")),
			NewDeflector(0.25, WithZ(25), WithLabel("D1")),
		},
		newTestScreen(t, 5), "bench")
	if err != nil {
		t.Fatalf("NewOpticalSystem error: %v", err)
	}
	traces, err := sys.Trace()
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	for i, tr := range traces {
		if tr.Label() != fmt.Sprintf("RT%d", i) {
			t.Fatalf("trace %d labelled %q", i, tr.Label())
		}
		if tr.Last().Z != 5 {
			t.Fatalf("trace %d ends at z=%v, want the screen", i, tr.Last().Z)
		}
		if tr.Len() != sys.Len()+1 {
			t.Fatalf("trace %d holds %d rays, want %d", i, tr.Len(), sys.Len()+1)
		}
	}
}

func TestTraceLeavesOperatorPositions(t *testing.T) {
	lens := NewLens(10, WithZ(50), WithLabel("L1"))
	sys := newTestSystem(t, lens)
	if _, err := sys.Trace(); err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if lens.Z() != 50 {
		t.Fatalf("batch tracing must not move operators, lens at z=%v", lens.Z())
	}
}

// Classic bench: parallel rays through a converging lens meet on the
// axis one focal length behind it.
func TestTraceFocusesParallelBundle(t *testing.T) {
	src := newTestSource(t, 100, []float64{0})
	src.SetSize(8)
	if err := src.SetPoints(5); err != nil {
		t.Fatalf("SetPoints error: %v", err)
	}
	sys, err := NewOpticalSystem(src, []OpticalOperator{
		NewLens(10, WithZ(50), WithLabel("L1")),
	}, newTestScreen(t, 40), "focus bench")
	if err != nil {
		t.Fatalf("NewOpticalSystem error: %v", err)
	}

	traces, err := sys.Trace()
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if len(traces) != 5 {
		t.Fatalf("expected 5 traces, got %d", len(traces))
	}
	for i, tr := range traces {
		last := tr.Last()
		if last.Z != 40 {
			t.Fatalf("trace %d ends at z=%v, want 40", i, last.Z)
		}
		if !closeTo(last.X, 0, 1e-9) {
			t.Fatalf("trace %d misses the focus by %v", i, last.X)
		}
	}
}

func TestTraceDeflectorShiftsSpot(t *testing.T) {
	sys := newTestSystem(t, NewDeflector(1, WithZ(60), WithLabel("D1")))
	traces, err := sys.Trace()
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	last := traces[0].Last()
	want := -math.Tan(math.Pi/180) * 60
	if !closeTo(last.X, want, 1e-12) {
		t.Fatalf("spot at %v, want %v", last.X, want)
	}
}

func TestTraceParallelMatchesSequential(t *testing.T) {
	src := newTestSource(t, 100, []float64{-1, -0.5, 0, 0.5, 1})
	src.SetSize(6)
	if err := src.SetPoints(4); err != nil {
		t.Fatalf("SetPoints error: %v", err)
	}
	sys, err := NewOpticalSystem(src, []OpticalOperator{
		NewLens(25, WithZ(70), WithLabel("L1")),
		NewDeflector(0.5, WithZ(35), WithLabel("D1")),
	}, newTestScreen(t, 0), "bench")
	if err != nil {
		t.Fatalf("NewOpticalSystem error: %v", err)
	}

	seq, err := sys.Trace()
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	par, err := sys.TraceParallel(3)
	if err != nil {
		t.Fatalf("TraceParallel error: %v", err)
	}
	if len(par) != len(seq) {
		t.Fatalf("parallel trace count %d, want %d", len(par), len(seq))
	}
	for i := range seq {
		if par[i].Label() != seq[i].Label() {
			t.Fatalf("trace %d labelled %q, want %q", i, par[i].Label(), seq[i].Label())
		}
		a, b := seq[i].Rays(), par[i].Rays()
		if len(a) != len(b) {
			t.Fatalf("trace %d length mismatch: %d vs %d", i, len(a), len(b))
		}
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("trace %d ray %d differs: %v vs %v", i, j, a[j], b[j])
			}
		}
	}
}

func TestTraceParallelSingleWorkerFallsBack(t *testing.T) {
	sys := newTestSystem(t, NewLens(10, WithZ(50), WithLabel("L1")))
	traces, err := sys.TraceParallel(1)
	if err != nil {
		t.Fatalf("TraceParallel error: %v", err)
	}
	if len(traces) != 1 || traces[0].Label() != "RT0" {
		t.Fatalf("fallback trace wrong: %v", traces)
	}
}

func TestSetSourceAndScreenValidate(t *testing.T) {
	sys := newTestSystem(t)
	if err := sys.SetSource(nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("SetSource(nil) should fail, got %v", err)
	}
	if err := sys.SetScreen(nil); !errors.Is(err, ErrNilScreen) {
		t.Fatalf("SetScreen(nil) should fail, got %v", err)
	}

	// Swapping the source does not re-fill until asked.
	src := newTestSource(t, 80, []float64{0})
	if err := sys.SetSource(src); err != nil {
		t.Fatalf("SetSource error: %v", err)
	}
	if got := propagatorValues(sys)[0]; got != 100 {
		t.Fatalf("gap re-filled early, length %v", got)
	}
	if err := sys.Fill(); err != nil {
		t.Fatalf("Fill error: %v", err)
	}
	if got := propagatorValues(sys)[0]; got != 80 {
		t.Fatalf("gap length %v after Fill, want 80", got)
	}
}

func TestOperatorsReturnsCopy(t *testing.T) {
	sys := newTestSystem(t, NewLens(10, WithZ(50), WithLabel("L1")))
	ops := sys.Operators()
	ops[0] = nil
	if sys.Operators()[0] == nil {
		t.Fatalf("Operators must return a copy of the slice")
	}
}
