package optics

import "fmt"

// Kind discriminates the concrete operator types.
type Kind int

const (
	KindPropagator Kind = iota
	KindLens
	KindDeflector
)

func (k Kind) String() string {
	switch k {
	case KindPropagator:
		return "propagator"
	case KindLens:
		return "lens"
	case KindDeflector:
		return "deflector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a kind name, as used in scenario files and API
// payloads, to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "propagator":
		return KindPropagator, nil
	case "lens":
		return KindLens, nil
	case "deflector":
		return KindDeflector, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// OpticalOperator is the contract shared by all bench elements. Value
// is the kind-specific magnitude: gap length for a propagator, focal
// length for a lens, deflection angle in degrees for a deflector.
type OpticalOperator interface {
	Kind() Kind

	Value() float64
	SetValue(v float64)
	Offset() float64
	SetOffset(v float64)
	Size() float64
	SetSize(v float64)
	Z() float64
	SetZ(v float64)
	Label() string
	SetLabel(l string)

	// Transfer returns the element's function-valued ABCD step.
	Transfer() Transfer

	// Apply feeds a ray through the element, returning the output ray
	// at the element's output plane. The output label is
	// "<operator>(<ray>)".
	Apply(r Ray) Ray
}

// element carries the fields common to every operator. Setters do not
// re-fill the owning system; only system-level Add and Remove do.
type element struct {
	value  float64
	offset float64
	size   float64
	z      float64
	label  string
}

func (e *element) Value() float64      { return e.value }
func (e *element) SetValue(v float64)  { e.value = v }
func (e *element) Offset() float64     { return e.offset }
func (e *element) SetOffset(v float64) { e.offset = v }
func (e *element) Size() float64       { return e.size }
func (e *element) SetSize(v float64)   { e.size = v }
func (e *element) Z() float64          { return e.z }
func (e *element) SetZ(v float64)      { e.z = v }
func (e *element) Label() string       { return e.label }
func (e *element) SetLabel(l string)   { e.label = l }

// Option configures the common operator fields at construction.
type Option func(*element)

// WithOffset sets the element's transverse offset.
func WithOffset(offset float64) Option {
	return func(e *element) { e.offset = offset }
}

// WithSize sets the element's aperture extent.
func WithSize(size float64) Option {
	return func(e *element) { e.size = size }
}

// WithZ sets the element's axial position.
func WithZ(z float64) Option {
	return func(e *element) { e.z = z }
}

// WithLabel sets the element's label.
func WithLabel(label string) Option {
	return func(e *element) { e.label = label }
}

func newElement(value float64, opts []Option) element {
	e := element{value: value}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// composeLabel is the output-ray label for an operator application.
func composeLabel(op, ray string) string {
	return op + "(" + ray + ")"
}

// describe is the shared String form of the concrete operators.
func describe(kind Kind, e *element) string {
	return fmt.Sprintf("%s %q: value=%g offset=%g size=%g z=%g",
		kind, e.label, e.value, e.offset, e.size, e.z)
}
