package api

import (
	"strings"
	"time"

	"github.com/lensworks/raybench/internal/archive"
	"github.com/lensworks/raybench/internal/state"
	"github.com/lensworks/raybench/optics"
)

// SourcePayload configures the emitter. It doubles as the source block
// in system responses.
type SourcePayload struct {
	Z         float64   `json:"z"`
	AnglesDeg []float64 `json:"angles_deg"`
	Offset    float64   `json:"offset"`
	Size      float64   `json:"size"`
	Points    int       `json:"points"`
	Label     string    `json:"label"`
}

// ScreenPayload configures the terminal plane.
type ScreenPayload struct {
	Z     float64 `json:"z"`
	Label string  `json:"label"`
}

// OperatorPayload describes one element to place on the bench.
type OperatorPayload struct {
	Kind   string  `json:"kind"` // "lens" | "deflector"
	Value  float64 `json:"value"`
	Offset float64 `json:"offset"`
	Size   float64 `json:"size"`
	Z      float64 `json:"z"`
	Label  string  `json:"label"`
}

// OperatorPatch carries partial field updates. Absent fields are left
// untouched.
type OperatorPatch struct {
	Value  *float64 `json:"value"`
	Offset *float64 `json:"offset"`
	Size   *float64 `json:"size"`
	Z      *float64 `json:"z"`
	Label  *string  `json:"label"`
}

// OperatorView is one operator in beam order, synthesized gaps
// included.
type OperatorView struct {
	Kind   string  `json:"kind"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Offset float64 `json:"offset"`
	Size   float64 `json:"size"`
	Z      float64 `json:"z"`
}

// SystemView is a full bench snapshot.
type SystemView struct {
	Label     string         `json:"label"`
	Source    SourcePayload  `json:"source"`
	Screen    ScreenPayload  `json:"screen"`
	Operators []OperatorView `json:"operators"`
}

// TracePayload selects how a batch trace runs. A missing body means a
// sequential, unarchived trace.
type TracePayload struct {
	Workers int  `json:"workers"`
	Archive bool `json:"archive"`
}

// PointView is one recorded station along a traced ray.
type PointView struct {
	X     float64 `json:"x"`
	Angle float64 `json:"angle"`
	Z     float64 `json:"z"`
	Label string  `json:"label"`
}

// TraceView is the recorded path of one ray, seed first.
type TraceView struct {
	Label  string      `json:"label"`
	Points []PointView `json:"points"`
}

// TraceResponse reports one completed batch trace.
type TraceResponse struct {
	SessionID   string      `json:"session_id"`
	SystemLabel string      `json:"system_label"`
	Mode        string      `json:"mode"`
	Workers     int         `json:"workers,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	DurationUS  int64       `json:"duration_us"`
	Operators   int         `json:"operators"`
	Archived    bool        `json:"archived"`
	Traces      []TraceView `json:"traces"`
}

// SessionView summarises one archived trace session.
type SessionView struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SystemLabel string    `json:"system_label"`
	Mode        string    `json:"mode"`
	Workers     int       `json:"workers"`
	Operators   int       `json:"operators"`
	Rays        int       `json:"rays"`
	DurationUS  int64     `json:"duration_us"`
}

// SessionDetail is a session summary plus its stored ray paths.
type SessionDetail struct {
	SessionView
	Traces []TraceView `json:"traces"`
}

// EventView is one bench event as sent on the SSE stream.
type EventView struct {
	Type      string `json:"type"`
	Label     string `json:"label,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Rays      int    `json:"rays,omitempty"`
}

func (p OperatorPayload) spec() (state.OperatorSpec, error) {
	kind, err := optics.ParseKind(strings.ToLower(strings.TrimSpace(p.Kind)))
	if err != nil {
		return state.OperatorSpec{}, err
	}
	return state.OperatorSpec{
		Kind:   kind,
		Value:  p.Value,
		Offset: p.Offset,
		Size:   p.Size,
		Z:      p.Z,
		Label:  p.Label,
	}, nil
}

func (p SourcePayload) spec() state.SourceSpec {
	return state.SourceSpec{
		Z:         p.Z,
		Offset:    p.Offset,
		Size:      p.Size,
		Points:    p.Points,
		AnglesDeg: p.AnglesDeg,
		Label:     p.Label,
	}
}

func (p ScreenPayload) spec() state.ScreenSpec {
	return state.ScreenSpec{Z: p.Z, Label: p.Label}
}

func (p OperatorPatch) update() state.OperatorUpdate {
	return state.OperatorUpdate{
		Value:  p.Value,
		Offset: p.Offset,
		Size:   p.Size,
		Z:      p.Z,
		Label:  p.Label,
	}
}

func sourceView(snap state.SourceSnapshot) SourcePayload {
	return SourcePayload{
		Z:         snap.Z,
		AnglesDeg: snap.AnglesDeg,
		Offset:    snap.Offset,
		Size:      snap.Size,
		Points:    snap.Points,
		Label:     snap.Label,
	}
}

func screenView(snap state.ScreenSnapshot) ScreenPayload {
	return ScreenPayload{Z: snap.Z, Label: snap.Label}
}

func operatorView(snap state.OperatorSnapshot) OperatorView {
	return OperatorView{
		Kind:   snap.Kind.String(),
		Label:  snap.Label,
		Value:  snap.Value,
		Offset: snap.Offset,
		Size:   snap.Size,
		Z:      snap.Z,
	}
}

func systemView(snap *state.SystemSnapshot) SystemView {
	view := SystemView{
		Label:     snap.Label,
		Source:    sourceView(snap.Source),
		Screen:    screenView(snap.Screen),
		Operators: make([]OperatorView, 0, len(snap.Operators)),
	}
	for _, op := range snap.Operators {
		view.Operators = append(view.Operators, operatorView(op))
	}
	return view
}

func traceViews(traces []state.TraceSnapshot) []TraceView {
	out := make([]TraceView, 0, len(traces))
	for _, tr := range traces {
		points := make([]PointView, len(tr.Points))
		for i, p := range tr.Points {
			points[i] = PointView{X: p.X, Angle: p.Angle, Z: p.Z, Label: p.Label}
		}
		out = append(out, TraceView{Label: tr.Label, Points: points})
	}
	return out
}

func traceResponse(res *state.TraceResult) TraceResponse {
	return TraceResponse{
		SessionID:   res.SessionID,
		SystemLabel: res.SystemLabel,
		Mode:        res.Mode,
		Workers:     res.Workers,
		StartedAt:   res.StartedAt,
		DurationUS:  res.Duration.Microseconds(),
		Operators:   res.Operators,
		Archived:    res.Archived,
		Traces:      traceViews(res.Traces),
	}
}

func sessionView(sum archive.SessionSummary) SessionView {
	return SessionView{
		ID:          sum.ID,
		CreatedAt:   sum.CreatedAt,
		SystemLabel: sum.SystemLabel,
		Mode:        sum.Mode,
		Workers:     sum.Workers,
		Operators:   sum.Operators,
		Rays:        sum.Rays,
		DurationUS:  sum.Duration.Microseconds(),
	}
}

func eventView(ev state.Event) EventView {
	return EventView{
		Type:      string(ev.Type),
		Label:     ev.Label,
		SessionID: ev.SessionID,
		Rays:      ev.Rays,
	}
}
