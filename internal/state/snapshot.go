package state

import "github.com/lensworks/raybench/optics"

// SystemSnapshot is a coherent copy of the bench at one instant.
//
// All fields, slices included, are value copies; callers may retain
// them without holding bench locks.
type SystemSnapshot struct {
	Label     string
	Source    SourceSnapshot
	Screen    ScreenSnapshot
	Operators []OperatorSnapshot
}

// SourceSnapshot mirrors the emitter configuration.
type SourceSnapshot struct {
	Z         float64
	Offset    float64
	Size      float64
	Points    int
	AnglesDeg []float64
	Label     string
}

// ScreenSnapshot mirrors the terminal plane.
type ScreenSnapshot struct {
	Z     float64
	Label string
}

// OperatorSnapshot mirrors one bench element.
type OperatorSnapshot struct {
	Kind   optics.Kind
	Label  string
	Value  float64
	Offset float64
	Size   float64
	Z      float64
}

func sourceSnapshot(src *optics.Source) SourceSnapshot {
	return SourceSnapshot{
		Z:         src.Z(),
		Offset:    src.Offset(),
		Size:      src.Size(),
		Points:    src.Points(),
		AnglesDeg: src.Angles(),
		Label:     src.Label(),
	}
}

func screenSnapshot(scr *optics.Screen) ScreenSnapshot {
	return ScreenSnapshot{
		Z:     scr.Z(),
		Label: scr.Label(),
	}
}

func operatorSnapshot(op optics.OpticalOperator) OperatorSnapshot {
	return OperatorSnapshot{
		Kind:   op.Kind(),
		Label:  op.Label(),
		Value:  op.Value(),
		Offset: op.Offset(),
		Size:   op.Size(),
		Z:      op.Z(),
	}
}

func operatorSnapshots(ops []optics.OpticalOperator) []OperatorSnapshot {
	out := make([]OperatorSnapshot, 0, len(ops))
	for _, op := range ops {
		if op == nil {
			continue
		}
		out = append(out, operatorSnapshot(op))
	}
	return out
}
