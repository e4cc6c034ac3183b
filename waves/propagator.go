package waves

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Propagator carries waves through free space over a fixed distance
// with a single-step Fresnel transform.
type Propagator struct {
	Distance float64
}

// Propagate returns a new wave on the input grid: the field is
// multiplied by the input quadratic phase, Fourier transformed and
// recentered, then scaled by the output phase and the far-field
// 1/(i d/lambda) factor. The input wave is untouched.
func (p Propagator) Propagate(w *Wave) *Wave {
	d := p.Distance
	lambda := w.wavelength

	in := make([][]complex128, len(w.field))
	for i, row := range w.field {
		ir := make([]complex128, len(row))
		for j, v := range row {
			r2 := w.x[i]*w.x[i] + w.y[j]*w.y[j]
			phase := 2 * math.Pi * r2 / (2 * lambda * d)
			ir[j] = cmplx.Exp(complex(0, phase)) * v
		}
		in[i] = ir
	}

	ft := fftshift2(fft.FFT2(in))

	scale := cmplx.Exp(complex(0, d/lambda)) / complex(0, d/lambda)
	out := make([][]complex128, len(ft))
	for i, row := range ft {
		or := make([]complex128, len(row))
		for j, v := range row {
			r2 := w.x[i]*w.x[i] + w.y[j]*w.y[j]
			or[j] = scale * cmplx.Exp(complex(0, r2/(2*lambda*d))) * v
		}
		out[i] = or
	}

	return &Wave{
		x:          append([]float64(nil), w.x...),
		y:          append([]float64(nil), w.y...),
		field:      out,
		wavelength: lambda,
	}
}

// fftshift2 moves the zero-frequency component to the grid center,
// matching numpy's fftshift for both even and odd dimensions.
func fftshift2(a [][]complex128) [][]complex128 {
	n := len(a)
	out := make([][]complex128, n)
	for i := range out {
		src := a[(i+n-n/2)%n]
		m := len(src)
		row := make([]complex128, m)
		for j := range row {
			row[j] = src[(j+m-m/2)%m]
		}
		out[i] = row
	}
	return out
}
