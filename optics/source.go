package optics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Source describes the emitter at the top of an optical system: an
// extended region at axial position Z radiating a fan of angles from a
// number of evenly spaced points.
type Source struct {
	z      float64
	size   float64
	offset float64
	points int
	angles []float64
	label  string
}

// NewSource builds a source at axial position z emitting the given
// angles (degrees). The source starts as a point emitter: size 0,
// offset 0, a single emission point.
func NewSource(z float64, anglesDeg []float64) (*Source, error) {
	s := &Source{points: 1, label: "Source"}
	if err := s.SetZ(z); err != nil {
		return nil, err
	}
	if err := s.SetAngles(anglesDeg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) Z() float64 { return s.z }

// SetZ moves the source plane; z must be non-negative.
func (s *Source) SetZ(z float64) error {
	if z < 0 {
		return fmt.Errorf("%w: source z must be non-negative, got %g", ErrInvalidValue, z)
	}
	s.z = z
	return nil
}

func (s *Source) Size() float64     { return s.size }
func (s *Source) SetSize(v float64) { s.size = v }

func (s *Source) Offset() float64     { return s.offset }
func (s *Source) SetOffset(v float64) { s.offset = v }

func (s *Source) Points() int { return s.points }

// SetPoints sets the number of emission positions; must be positive.
func (s *Source) SetPoints(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: source points must be positive, got %d", ErrInvalidValue, n)
	}
	s.points = n
	return nil
}

// Angles returns a copy of the emission angles in degrees.
func (s *Source) Angles() []float64 {
	out := make([]float64, len(s.angles))
	copy(out, s.angles)
	return out
}

// SetAngles replaces the emission angles (degrees); the list must not
// be empty.
func (s *Source) SetAngles(anglesDeg []float64) error {
	if len(anglesDeg) == 0 {
		return fmt.Errorf("%w: source needs at least one emission angle", ErrInvalidValue)
	}
	s.angles = make([]float64, len(anglesDeg))
	copy(s.angles, anglesDeg)
	return nil
}

func (s *Source) Label() string     { return s.label }
func (s *Source) SetLabel(l string) { s.label = l }

// Emit produces the source rays in emission order, labelled "R0",
// "R1", and so on. Positions are spread evenly across
// [offset-size/2, offset+size/2]; a single point sits at the offset
// itself. A size-zero source emits from the first position only, and a
// list of identical angles collapses to one ray per position.
func (s *Source) Emit() []Ray {
	var xs []float64
	if s.points == 1 {
		xs = []float64{s.offset}
	} else {
		xs = floats.Span(make([]float64, s.points), s.offset-s.size/2, s.offset+s.size/2)
	}

	uniform := true
	for _, a := range s.angles[1:] {
		if a != s.angles[0] {
			uniform = false
			break
		}
	}

	rays := make([]Ray, 0, s.points*len(s.angles))
	i := 0
	for _, x := range xs {
		for _, deg := range s.angles {
			rays = append(rays, NewRayDeg(x, deg, s.z, fmt.Sprintf("R%d", i)))
			i++
			if uniform {
				break
			}
		}
		if s.size == 0 {
			break
		}
	}
	return rays
}

func (s *Source) String() string {
	return fmt.Sprintf("Source %q: z=%g size=%g offset=%g points=%d angles=%v",
		s.label, s.z, s.size, s.offset, s.points, s.angles)
}
