package optics

import (
	"errors"
	"strings"
	"testing"
)

func benchOperators() []OpticalOperator {
	return []OpticalOperator{
		NewPropagator(50, WithZ(50), WithLabel("S0")),
		NewLens(10, WithZ(50), WithLabel("L")),
		NewPropagator(50, WithZ(0), WithLabel("S1")),
	}
}

func TestTraceAppendsOneRayPerOperator(t *testing.T) {
	ops := benchOperators()
	rt := NewRayTrace(NewRay(0, 0, 100, "R0"), WithTraceLabel("RT0"))
	if err := rt.Trace(ops, false); err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if rt.Len() != len(ops)+1 {
		t.Fatalf("trace holds %d rays, want %d", rt.Len(), len(ops)+1)
	}
	if rt.First().Label != "R0" {
		t.Fatalf("first ray is %q, want the seed", rt.First().Label)
	}
	if got := rt.Last().Label; got != "S1(L(S0(R0)))" {
		t.Fatalf("last ray labelled %q", got)
	}
}

func TestTraceRefusesSecondRun(t *testing.T) {
	ops := benchOperators()
	rt := NewRayTrace(NewRay(0, 0, 100, "R0"))
	if err := rt.Trace(ops, false); err != nil {
		t.Fatalf("first Trace error: %v", err)
	}
	err := rt.Trace(ops, false)
	if !errors.Is(err, ErrRetrace) {
		t.Fatalf("second Trace should fail with ErrRetrace, got %v", err)
	}
}

func TestTraceEmptyTraceFails(t *testing.T) {
	var rt RayTrace
	err := rt.Trace(benchOperators(), false)
	if !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("tracing an empty trace should fail with ErrNotSeeded, got %v", err)
	}
}

func TestRunSelfHealsOnce(t *testing.T) {
	ops := benchOperators()
	var warnings []string
	seed := NewRay(0, 0, 100, "R0")
	rt := NewRayTrace(seed, WithWarnings(func(msg string) { warnings = append(warnings, msg) }))

	if err := rt.Run(ops, false); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	// Second Run hits the retrace guard, reseeds from the first ray and
	// traces again.
	if err := rt.Run(ops, false); err != nil {
		t.Fatalf("second Run should self-heal, got %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", len(warnings), warnings)
	}
	if rt.Len() != len(ops)+1 {
		t.Fatalf("healed trace holds %d rays, want %d", rt.Len(), len(ops)+1)
	}
	if rt.First() != seed {
		t.Fatalf("healed trace reseeded from %v, want the original seed", rt.First())
	}
}

func TestRunDoesNotHealEmptyTrace(t *testing.T) {
	var rt RayTrace
	err := rt.Run(benchOperators(), false)
	if !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("Run on an empty trace should propagate ErrNotSeeded, got %v", err)
	}
}

func TestTraceSetZMovesOperators(t *testing.T) {
	p := NewPropagator(30, WithZ(999), WithLabel("S"))
	rt := NewRayTrace(NewRay(0, 0, 100, "R"))
	if err := rt.Trace([]OpticalOperator{p}, true); err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if p.Z() != 70 {
		t.Fatalf("setZ should move the operator to the output plane, z = %v", p.Z())
	}
}

func TestTraceSetZFalseLeavesOperators(t *testing.T) {
	p := NewPropagator(30, WithZ(999))
	rt := NewRayTrace(NewRay(0, 0, 100, "R"))
	if err := rt.Trace([]OpticalOperator{p}, false); err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if p.Z() != 999 {
		t.Fatalf("operator z must be untouched, z = %v", p.Z())
	}
}

func TestTraceSkipsNilOperators(t *testing.T) {
	ops := []OpticalOperator{NewPropagator(10), nil, NewPropagator(20)}
	rt := NewRayTrace(NewRay(0, 0, 100, "R"))
	if err := rt.Trace(ops, false); err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if rt.Len() != 3 {
		t.Fatalf("nil operators must be skipped, trace holds %d rays", rt.Len())
	}
	if rt.Last().Z != 70 {
		t.Fatalf("final z = %v, want 70", rt.Last().Z)
	}
}

func TestRaysReturnsCopy(t *testing.T) {
	rt := NewRayTrace(NewRay(1, 0, 10, "R"))
	rays := rt.Rays()
	rays[0].X = 42
	if rt.First().X != 1 {
		t.Fatalf("Rays must return a copy, seed now %v", rt.First())
	}
}

func TestRayTraceString(t *testing.T) {
	rt := NewRayTrace(NewRay(0, 0, 10, "R0"), WithTraceLabel("RT0"))
	s := rt.String()
	if !strings.Contains(s, "RT0") || !strings.Contains(s, "R0") {
		t.Fatalf("String output missing labels: %q", s)
	}
}
