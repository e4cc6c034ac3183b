package optics

import "math"

// Deflector tilts a ray by a fixed angle, independent of where the ray
// crosses it. Its value is the deflection in degrees.
type Deflector struct {
	element
}

// NewDeflector builds a deflector with the given angle in degrees.
func NewDeflector(angleDeg float64, opts ...Option) *Deflector {
	return &Deflector{element: newElement(angleDeg, opts)}
}

func (d *Deflector) Kind() Kind { return KindDeflector }

// Transfer adds the deflection to the angle term.
func (d *Deflector) Transfer() Transfer {
	shift := d.value * math.Pi / 180
	return Transfer{
		A: Constant(1),
		B: Constant(0),
		C: Constant(0),
		D: FuncOf(func(angle float64) float64 { return angle + shift }),
	}
}

// Apply tilts the ray; position and z are unchanged.
func (d *Deflector) Apply(r Ray) Ray {
	_, angle := d.Transfer().Apply(r.X, r.Angle)
	return Ray{X: r.X, Angle: angle, Z: r.Z, Label: composeLabel(d.label, r.Label)}
}

func (d *Deflector) String() string { return describe(KindDeflector, &d.element) }
