package optics

import "errors"

// Sentinel errors returned by the engine. Callers are expected to test
// them with errors.Is; the concrete messages carry extra context.
var (
	// ErrOperatorNotFound is returned by label lookups that match nothing.
	ErrOperatorNotFound = errors.New("optics: no operator with label")

	// ErrAmbiguousLabel is returned when a label matches more than one
	// operator and a unique answer is required.
	ErrAmbiguousLabel = errors.New("optics: ambiguous operator label")

	// ErrLabelCollision is returned by Fill when a synthesized propagator
	// label is already taken by a remaining operator.
	ErrLabelCollision = errors.New("optics: propagator label collision")

	// ErrNotSeeded is returned when tracing a trace that holds no rays.
	ErrNotSeeded = errors.New("optics: ray trace has no seed ray")

	// ErrRetrace is returned when tracing a trace that was already run.
	ErrRetrace = errors.New("optics: ray trace already traced")

	// ErrNilOperator is returned when adding a nil operator to a system.
	ErrNilOperator = errors.New("optics: nil operator")

	// ErrNilSource and ErrNilScreen guard system construction.
	ErrNilSource = errors.New("optics: nil source")
	ErrNilScreen = errors.New("optics: nil screen")

	// ErrInvalidValue is returned by validated setters for out-of-range
	// values (negative axial positions, non-positive point counts, empty
	// angle lists).
	ErrInvalidValue = errors.New("optics: invalid value")

	// ErrUnknownKind is returned when parsing an operator kind string.
	ErrUnknownKind = errors.New("optics: unknown operator kind")
)
