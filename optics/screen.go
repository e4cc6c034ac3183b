package optics

import "fmt"

// Screen is the terminal plane of an optical system. It has no
// transfer of its own; Fill synthesizes the final propagator that
// carries rays down to it.
type Screen struct {
	z     float64
	label string
}

// NewScreen builds a screen at axial position z.
func NewScreen(z float64) (*Screen, error) {
	s := &Screen{label: "Screen"}
	if err := s.SetZ(z); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Screen) Z() float64 { return s.z }

// SetZ moves the screen plane; z must be non-negative.
func (s *Screen) SetZ(z float64) error {
	if z < 0 {
		return fmt.Errorf("%w: screen z must be non-negative, got %g", ErrInvalidValue, z)
	}
	s.z = z
	return nil
}

func (s *Screen) Label() string     { return s.label }
func (s *Screen) SetLabel(l string) { s.label = l }

func (s *Screen) String() string {
	return fmt.Sprintf("Screen %q: z=%g", s.label, s.z)
}
