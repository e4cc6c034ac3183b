package optics

import "math"

// Lens is a thin lens. Its value is the focal length; the kick is the
// exact asin form, so rays far from the axis focus where trigonometry
// puts them rather than where the paraxial approximation does.
type Lens struct {
	element
}

// NewLens builds a thin lens with the given focal length.
func NewLens(focalLength float64, opts ...Option) *Lens {
	return &Lens{element: newElement(focalLength, opts)}
}

func (l *Lens) Kind() Kind { return KindLens }

// Transfer leaves the position untouched and adds the position
// dependent kick to the angle.
func (l *Lens) Transfer() Transfer {
	return Transfer{
		A: Constant(1),
		B: Constant(0),
		C: FuncOf(l.kick),
		D: Constant(1),
	}
}

// kick is the angular change for a ray crossing the lens plane at x.
// A ray through the lens center passes undeviated. A zero focal length
// folds any off-center ray to an infinite angle, signed toward the
// center.
func (l *Lens) kick(x float64) float64 {
	dx := l.offset - x
	switch {
	case dx == 0:
		return 0
	case l.value == 0:
		return math.Inf(1) * sign(dx)
	default:
		return math.Asin(-dx / math.Sqrt(dx*dx+l.value*l.value))
	}
}

// Apply bends the ray at the lens plane; position and z are unchanged.
func (l *Lens) Apply(r Ray) Ray {
	_, angle := l.Transfer().Apply(r.X, r.Angle)
	return Ray{X: r.X, Angle: angle, Z: r.Z, Label: composeLabel(l.label, r.Label)}
}

func (l *Lens) String() string { return describe(KindLens, &l.element) }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
