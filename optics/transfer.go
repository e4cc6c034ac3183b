package optics

// Coefficient is a single entry of a first-order transfer step. A
// Constant entry multiplies the variable it applies to. A FuncOf entry
// is evaluated at the variable and its result replaces the whole
// product term; this is how exact trigonometric forms ride inside the
// matrix formalism instead of their small-angle approximations.
type Coefficient interface {
	// Eval produces the term this coefficient contributes for the
	// given variable (position or angle).
	Eval(v float64) float64
}

// Constant is a coefficient that scales its variable.
type Constant float64

// Eval returns the coefficient times v.
func (c Constant) Eval(v float64) float64 { return float64(c) * v }

// FuncOf is a coefficient evaluated at its variable.
type FuncOf func(v float64) float64

// Eval returns f(v); the result is the full term, not a factor.
func (f FuncOf) Eval(v float64) float64 { return f(v) }

// Transfer is a first-order step acting on the (x, angle) pair:
//
//	x'     = A•x + B•angle
//	angle' = C•x + D•angle
//
// where • is Eval, so function-valued entries substitute their result
// for the product.
type Transfer struct {
	A, B Coefficient
	C, D Coefficient
}

// Apply maps an input (x, angle) pair to the output pair.
func (t Transfer) Apply(x, angle float64) (xOut, angleOut float64) {
	xOut = t.A.Eval(x) + t.B.Eval(angle)
	angleOut = t.C.Eval(x) + t.D.Eval(angle)
	return xOut, angleOut
}
