package waves

import (
	"errors"
	"math"
	"testing"
)

func closeTo(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNewDefaultsTo32Points(t *testing.T) {
	w, err := New("", Grid{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if w.Nx() != 32 || w.Ny() != 32 {
		t.Fatalf("default grid is %dx%d, want 32x32", w.Nx(), w.Ny())
	}
	e := w.Extent()
	if !closeTo(e[0], -1.6, 1e-12) || !closeTo(e[1], 1.6, 1e-12) {
		t.Fatalf("default extent %v, want +-nx/2 times resolution", e)
	}
	if w.Wavelength() != 1 {
		t.Fatalf("default wavelength %v, want 1", w.Wavelength())
	}
}

func TestNewFromExtentDerivesPointCount(t *testing.T) {
	w, err := New(Plane, Grid{Extent: []float64{-8, 8, -8, 8}, Resolution: 0.5})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if w.Nx() != 32 || w.Ny() != 32 {
		t.Fatalf("grid is %dx%d, want 32x32", w.Nx(), w.Ny())
	}
	e := w.Extent()
	if e[0] != -8 || e[1] != 8 || e[2] != -8 || e[3] != 8 {
		t.Fatalf("extent %v, want the requested one", e)
	}
}

func TestNewRejectsPointCountWithExtent(t *testing.T) {
	_, err := New(Plane, Grid{Nx: 16, Extent: []float64{-1, 1, -1, 1}})
	if !errors.Is(err, ErrGridConflict) {
		t.Fatalf("expected ErrGridConflict, got %v", err)
	}
}

func TestNewRejectsDegenerateGrid(t *testing.T) {
	_, err := New(Plane, Grid{Extent: []float64{-0.1, 0.1, -8, 8}, Resolution: 0.5})
	if !errors.Is(err, ErrInvalidGrid) {
		t.Fatalf("expected ErrInvalidGrid, got %v", err)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("spherical", Grid{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPlaneWaveHasUnitIntensity(t *testing.T) {
	w, err := New(Plane, Grid{Nx: 8, Ny: 8, Resolution: 0.5})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i, row := range w.Intensity() {
		for j, v := range row {
			if !closeTo(v, 1, 1e-12) {
				t.Fatalf("intensity[%d][%d] = %v, want 1", i, j, v)
			}
		}
	}
}

func TestConvergedWaveGrowsWithRadius(t *testing.T) {
	w, err := New(Converged, Grid{Nx: 8, Ny: 8, Resolution: 0.5})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	x, y := w.X(), w.Y()
	intensity := w.Intensity()
	for i := range x {
		for j := range y {
			r := math.Hypot(x[i], y[j])
			if !closeTo(intensity[i][j], 1+r*r, 1e-9) {
				t.Fatalf("intensity[%d][%d] = %v, want %v", i, j, intensity[i][j], 1+r*r)
			}
		}
	}
}

func TestFFTShiftEven(t *testing.T) {
	a := [][]complex128{
		{0, 1},
		{2, 3},
	}
	s := fftshift2(a)
	want := [][]complex128{
		{3, 2},
		{1, 0},
	}
	for i := range want {
		for j := range want[i] {
			if s[i][j] != want[i][j] {
				t.Fatalf("shift[%d][%d] = %v, want %v", i, j, s[i][j], want[i][j])
			}
		}
	}
}

func TestFFTShiftOdd(t *testing.T) {
	a := [][]complex128{{0}, {1}, {2}, {3}, {4}}
	s := fftshift2(a)
	want := []complex128{3, 4, 0, 1, 2}
	for i := range want {
		if s[i][0] != want[i] {
			t.Fatalf("shift[%d] = %v, want %v", i, s[i][0], want[i])
		}
	}
}

func TestPropagateKeepsGridAndWavelength(t *testing.T) {
	w, err := New(Plane, Grid{Nx: 16, Ny: 16, Resolution: 0.5, Wavelength: 2})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	out := Propagator{Distance: 3}.Propagate(w)
	if out.Nx() != 16 || out.Ny() != 16 {
		t.Fatalf("output grid %dx%d, want 16x16", out.Nx(), out.Ny())
	}
	if out.Extent() != w.Extent() {
		t.Fatalf("extent changed: %v vs %v", out.Extent(), w.Extent())
	}
	if out.Wavelength() != 2 {
		t.Fatalf("wavelength changed: %v", out.Wavelength())
	}
}

func TestPropagateDoesNotMutateInput(t *testing.T) {
	w, err := New(Plane, Grid{Nx: 8, Ny: 8, Resolution: 0.5})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	Propagator{Distance: 2}.Propagate(w)
	for i, row := range w.Intensity() {
		for j, v := range row {
			if !closeTo(v, 1, 1e-12) {
				t.Fatalf("input wave changed at [%d][%d]: %v", i, j, v)
			}
		}
	}
}

// The propagation multipliers are pure phases except for the
// lambda/distance amplitude, and the unnormalized forward FFT scales
// total power by the point count, so total output power is fixed by
// Parseval regardless of the field shape.
func TestPropagateTotalPowerFollowsParseval(t *testing.T) {
	w, err := New(Plane, Grid{Nx: 32, Ny: 32, Resolution: 0.5, Wavelength: 1})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d := 2.0
	out := Propagator{Distance: d}.Propagate(w)

	sum := func(m [][]float64) float64 {
		total := 0.0
		for _, row := range m {
			for _, v := range row {
				total += v
			}
		}
		return total
	}
	in := sum(w.Intensity())
	got := sum(out.Intensity())
	amp := w.Wavelength() / d
	want := amp * amp * float64(w.Nx()*w.Ny()) * in
	if math.Abs(got-want)/want > 1e-9 {
		t.Fatalf("total power %v, want %v", got, want)
	}
}
