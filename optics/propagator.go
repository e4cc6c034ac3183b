package optics

import "math"

// Propagator advances a ray through free space. Its value is the gap
// length, stored positive; the beam moves toward decreasing z, so a
// ray with positive angle drifts toward smaller x as it travels.
type Propagator struct {
	element
}

// NewPropagator builds a free-space gap of the given length.
func NewPropagator(distance float64, opts ...Option) *Propagator {
	return &Propagator{element: newElement(distance, opts)}
}

func (p *Propagator) Kind() Kind { return KindPropagator }

// Transfer keeps the angle and shifts the position by the exact
// -tan(angle)*distance, not the paraxial -angle*distance.
func (p *Propagator) Transfer() Transfer {
	d := p.value
	return Transfer{
		A: Constant(1),
		B: FuncOf(func(angle float64) float64 { return -math.Tan(angle) * d }),
		C: Constant(0),
		D: Constant(1),
	}
}

// Apply advances the ray down the axis by the gap length. A zero-length
// gap is the identity.
func (p *Propagator) Apply(r Ray) Ray {
	label := composeLabel(p.label, r.Label)
	if p.value == 0 {
		return r.WithLabel(label)
	}
	x, angle := p.Transfer().Apply(r.X, r.Angle)
	return Ray{X: x, Angle: angle, Z: r.Z - p.value, Label: label}
}

func (p *Propagator) String() string { return describe(KindPropagator, &p.element) }
