// Package scenario loads optical bench descriptions from JSON. A
// bench file names the source, the screen and the physical elements;
// the free-space gaps are synthesized when the system is built, so
// files never need to spell them out.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lensworks/raybench/optics"
)

// Summary is a small digest of what was loaded. It is mainly useful
// for logging or banner output from main().
type Summary struct {
	Label     string
	SourceZ   float64
	ScreenZ   float64
	Elements  []string // physical element labels in beam order
	Operators int      // total operator count, synthesized gaps included
}

// internal JSON shapes, kept unexported so we are free to evolve them.
type benchJSON struct {
	Label    string        `json:"label"`
	Source   sourceJSON    `json:"source"`
	Screen   screenJSON    `json:"screen"`
	Elements []elementJSON `json:"elements"`
}

type sourceJSON struct {
	Z         float64   `json:"z"`
	AnglesDeg []float64 `json:"angles_deg"`
	Offset    float64   `json:"offset"`
	Size      float64   `json:"size"`
	Points    *int      `json:"points"` // optional; defaults to 1
	Label     string    `json:"label"`
}

type screenJSON struct {
	Z     float64 `json:"z"`
	Label string  `json:"label"`
}

type elementJSON struct {
	Kind   string  `json:"kind"` // "lens" | "deflector" | "propagator"
	Value  float64 `json:"value"`
	Z      float64 `json:"z"`
	Offset float64 `json:"offset"`
	Size   float64 `json:"size"`
	Label  string  `json:"label"`
}

// LoadBench reads a JSON bench description from r, builds the optical
// system it describes and returns it with a summary of what was
// loaded.
//
// It fails on JSON errors and on anything the optics constructors
// reject: bad source geometry, unknown element kinds, gap label
// collisions. Explicit propagators in the element list are legal but
// pointless, since building the system drops them and synthesizes the
// gaps from scratch.
func LoadBench(r io.Reader) (*optics.OpticalSystem, *Summary, error) {
	var payload benchJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("LoadBench: decode failed: %w", err)
	}

	src, err := sourceFromJSON(payload.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadBench: source: %w", err)
	}

	scr, err := optics.NewScreen(payload.Screen.Z)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadBench: screen: %w", err)
	}
	if payload.Screen.Label != "" {
		scr.SetLabel(payload.Screen.Label)
	}

	ops := make([]optics.OpticalOperator, 0, len(payload.Elements))
	for i, el := range payload.Elements {
		op, err := elementFromJSON(el)
		if err != nil {
			return nil, nil, fmt.Errorf("LoadBench: element %d: %w", i, err)
		}
		ops = append(ops, op)
	}

	sys, err := optics.NewOpticalSystem(src, ops, scr, payload.Label)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadBench: %w", err)
	}

	result := &Summary{
		Label:     sys.Label(),
		SourceZ:   src.Z(),
		ScreenZ:   scr.Z(),
		Operators: sys.Len(),
	}
	for _, op := range sys.Operators() {
		if op.Kind() != optics.KindPropagator {
			result.Elements = append(result.Elements, op.Label())
		}
	}
	return sys, result, nil
}

func sourceFromJSON(js sourceJSON) (*optics.Source, error) {
	src, err := optics.NewSource(js.Z, js.AnglesDeg)
	if err != nil {
		return nil, err
	}
	src.SetOffset(js.Offset)
	src.SetSize(js.Size)
	if js.Points != nil {
		if err := src.SetPoints(*js.Points); err != nil {
			return nil, err
		}
	}
	if js.Label != "" {
		src.SetLabel(js.Label)
	}
	return src, nil
}

// elementFromJSON builds one physical element. Kind names are
// normalized but never defaulted; an unknown kind is an error.
func elementFromJSON(el elementJSON) (optics.OpticalOperator, error) {
	kind, err := optics.ParseKind(strings.ToLower(strings.TrimSpace(el.Kind)))
	if err != nil {
		return nil, err
	}
	if el.Label == "" {
		return nil, fmt.Errorf("%s element with empty label", kind)
	}

	opts := []optics.Option{
		optics.WithZ(el.Z),
		optics.WithOffset(el.Offset),
		optics.WithSize(el.Size),
		optics.WithLabel(el.Label),
	}

	switch kind {
	case optics.KindLens:
		return optics.NewLens(el.Value, opts...), nil
	case optics.KindDeflector:
		return optics.NewDeflector(el.Value, opts...), nil
	default:
		return optics.NewPropagator(el.Value, opts...), nil
	}
}
