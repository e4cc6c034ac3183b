// Package waves implements scalar wave optics on a sampled 2-D grid:
// complex wave fields and single-step Fresnel free-space propagation.
package waves

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrGridConflict is returned when a grid gives both explicit point
	// counts and an extent.
	ErrGridConflict = errors.New("waves: nx/ny cannot be combined with an explicit extent")

	// ErrInvalidGrid is returned when a grid resolves to fewer than two
	// points along an axis.
	ErrInvalidGrid = errors.New("waves: grid needs at least 2 points per axis")

	// ErrUnknownKind is returned for unrecognized wave kinds.
	ErrUnknownKind = errors.New("waves: unknown wave kind")
)

// Kind selects the initial field of a wave.
type Kind string

const (
	// Plane is a uniform unit field.
	Plane Kind = "plane"
	// Converged is a unit field with an imaginary part growing with the
	// distance from the grid center.
	Converged Kind = "converged"
)

// Grid describes the sampling of a wave. Either Nx/Ny or Extent may be
// given, not both; with neither, the grid defaults to 32x32 points at
// the resolution. Extent is [left, right, bottom, top].
type Grid struct {
	Nx, Ny     int
	Extent     []float64
	Resolution float64
	Wavelength float64
}

// Wave is a complex field sampled on a regular grid. The wavelength is
// a scaling factor for propagation.
type Wave struct {
	x, y       []float64
	field      [][]complex128
	wavelength float64
}

// New builds a wave of the given kind on the grid. An empty kind means
// a plane wave.
func New(kind Kind, g Grid) (*Wave, error) {
	res := g.Resolution
	if res == 0 {
		res = 0.1
	}
	wavelength := g.Wavelength
	if wavelength == 0 {
		wavelength = 1
	}

	nx, ny := g.Nx, g.Ny
	var left, right, bottom, top float64
	if g.Extent == nil {
		if nx == 0 {
			nx = 32
		}
		if ny == 0 {
			ny = 32
		}
		left, right = -float64(nx)/2*res, float64(nx)/2*res
		bottom, top = -float64(ny)/2*res, float64(ny)/2*res
	} else {
		if nx != 0 || ny != 0 {
			return nil, fmt.Errorf("%w: nx=%d ny=%d with extent %v", ErrGridConflict, nx, ny, g.Extent)
		}
		if len(g.Extent) != 4 {
			return nil, fmt.Errorf("%w: extent needs [left, right, bottom, top], got %v", ErrInvalidGrid, g.Extent)
		}
		left, right, bottom, top = g.Extent[0], g.Extent[1], g.Extent[2], g.Extent[3]
		nx = int(math.Abs((right - left) / res))
		ny = int(math.Abs((top - bottom) / res))
	}
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, nx, ny)
	}

	w := &Wave{
		x:          floats.Span(make([]float64, nx), left, right),
		y:          floats.Span(make([]float64, ny), bottom, top),
		wavelength: wavelength,
	}
	field, err := makeField(kind, w.x, w.y)
	if err != nil {
		return nil, err
	}
	w.field = field
	return w, nil
}

func makeField(kind Kind, x, y []float64) ([][]complex128, error) {
	switch kind {
	case "", Plane:
		return planeField(x, y), nil
	case Converged:
		return convergedField(x, y), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func planeField(x, y []float64) [][]complex128 {
	field := make([][]complex128, len(x))
	for i := range field {
		row := make([]complex128, len(y))
		for j := range row {
			row[j] = 1
		}
		field[i] = row
	}
	return field
}

func convergedField(x, y []float64) [][]complex128 {
	field := make([][]complex128, len(x))
	for i := range field {
		row := make([]complex128, len(y))
		for j := range row {
			r := math.Hypot(x[i], y[j])
			row[j] = complex(1, r)
		}
		field[i] = row
	}
	return field
}

// Nx reports the number of grid points along x.
func (w *Wave) Nx() int { return len(w.x) }

// Ny reports the number of grid points along y.
func (w *Wave) Ny() int { return len(w.y) }

// X returns a copy of the x sampling positions.
func (w *Wave) X() []float64 {
	out := make([]float64, len(w.x))
	copy(out, w.x)
	return out
}

// Y returns a copy of the y sampling positions.
func (w *Wave) Y() []float64 {
	out := make([]float64, len(w.y))
	copy(out, w.y)
	return out
}

// Extent returns [left, right, bottom, top] of the sampled region.
func (w *Wave) Extent() [4]float64 {
	return [4]float64{w.x[0], w.x[len(w.x)-1], w.y[0], w.y[len(w.y)-1]}
}

// Resolution returns the x grid spacing. The y spacing can differ when
// the wave was built from an uneven extent.
func (w *Wave) Resolution() float64 {
	return math.Abs(w.x[1] - w.x[0])
}

// Wavelength returns the wavelength scale.
func (w *Wave) Wavelength() float64 { return w.wavelength }

// Field returns the complex field indexed [ix][iy]. Callers MUST treat
// the returned slices as read-only.
func (w *Wave) Field() [][]complex128 { return w.field }

// Intensity returns |field|^2 on the same grid.
func (w *Wave) Intensity() [][]float64 {
	out := make([][]float64, len(w.field))
	for i, row := range w.field {
		or := make([]float64, len(row))
		for j, v := range row {
			a := cmplx.Abs(v)
			or[j] = a * a
		}
		out[i] = or
	}
	return out
}

func (w *Wave) String() string {
	e := w.Extent()
	return fmt.Sprintf("Wave(%d, %d) with wavelength %g and extent ([l, r, b, t]): %v",
		w.Nx(), w.Ny(), w.wavelength, e)
}
