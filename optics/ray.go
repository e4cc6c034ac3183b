// Package optics implements a first-order (paraxial bench) ray tracing
// engine. Rays travel from a source at high z toward a screen at low z;
// operators transform rays through function-valued ABCD transfer steps.
package optics

import (
	"fmt"
	"math"
)

// DefaultRayLabel is assigned to rays constructed without a label.
const DefaultRayLabel = "R"

// Ray is the instantaneous state of a meridional ray: transverse
// position X, inclination Angle (radians), axial position Z. Rays are
// values; operators return new rays and never mutate their input.
type Ray struct {
	X     float64
	Angle float64
	Z     float64
	Label string
}

// NewRay builds a ray with the angle given in radians.
func NewRay(x, angle, z float64, label string) Ray {
	if label == "" {
		label = DefaultRayLabel
	}
	return Ray{X: x, Angle: angle, Z: z, Label: label}
}

// NewRayDeg builds a ray with the angle given in degrees.
func NewRayDeg(x, angleDeg, z float64, label string) Ray {
	return NewRay(x, angleDeg*math.Pi/180, z, label)
}

// AngleDeg returns the inclination in degrees.
func (r Ray) AngleDeg() float64 {
	return r.Angle * 180 / math.Pi
}

// WithLabel returns a copy of the ray carrying the given label.
func (r Ray) WithLabel(label string) Ray {
	r.Label = label
	return r
}

func (r Ray) String() string {
	return fmt.Sprintf("Ray %q starting at %g: [%g, %g]", r.Label, r.Z, r.X, r.AngleDeg())
}
