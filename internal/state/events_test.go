package state

import (
	"testing"

	"github.com/lensworks/raybench/optics"
)

func TestSubscribeReceivesMutationEvents(t *testing.T) {
	b := newTestBench(t)

	var events []Event
	unsub := b.Subscribe(func(ev Event) { events = append(events, ev) })
	defer unsub()

	if _, err := b.AddOperator(OperatorSpec{Kind: optics.KindLens, Value: 20, Z: 30, Label: "L2"}); err != nil {
		t.Fatalf("AddOperator: %v", err)
	}
	if err := b.RemoveOperator("L2"); err != nil {
		t.Fatalf("RemoveOperator: %v", err)
	}
	if _, err := b.SetSource(SourceSpec{Z: 90, AnglesDeg: []float64{0}}); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if _, err := b.SetScreen(ScreenSpec{Z: 5}); err != nil {
		t.Fatalf("SetScreen: %v", err)
	}
	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	want := []EventType{
		EventOperatorAdded,
		EventOperatorRemoved,
		EventSourceUpdated,
		EventScreenUpdated,
		EventSystemFilled,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event %d = %q, want %q", i, ev.Type, want[i])
		}
	}
	if events[0].Label != "L2" || events[1].Label != "L2" {
		t.Fatalf("operator event labels = %q, %q, want L2 for both", events[0].Label, events[1].Label)
	}
}

func TestFailedMutationEmitsNoEvent(t *testing.T) {
	b := newTestBench(t)

	calls := 0
	unsub := b.Subscribe(func(Event) { calls++ })
	defer unsub()

	if _, err := b.AddOperator(OperatorSpec{Kind: optics.KindLens, Value: 10, Z: 20, Label: "L1"}); err == nil {
		t.Fatal("duplicate add succeeded, want error")
	}
	if err := b.RemoveOperator("nope"); err == nil {
		t.Fatal("unknown remove succeeded, want error")
	}
	if calls != 0 {
		t.Fatalf("events after failed mutations = %d, want 0", calls)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBench(t)

	calls := 0
	unsub := b.Subscribe(func(Event) { calls++ })

	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	unsub()
	unsub() // repeated unsubscribe is a no-op
	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestMultipleSubscribersAllNotified(t *testing.T) {
	b := newTestBench(t)

	first, second := 0, 0
	unsub1 := b.Subscribe(func(Event) { first++ })
	defer unsub1()
	unsub2 := b.Subscribe(func(Event) { second++ })

	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	unsub2()
	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	if first != 2 || second != 1 {
		t.Fatalf("deliveries = %d, %d, want 2 and 1", first, second)
	}
}

func TestSubscribeNilCallback(t *testing.T) {
	b := newTestBench(t)
	unsub := b.Subscribe(nil)
	unsub()
	if err := b.Fill(); err != nil {
		t.Fatalf("Fill: %v", err)
	}
}
