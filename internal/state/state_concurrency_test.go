package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lensworks/raybench/optics"
)

// TestBenchConcurrency runs traces, bench edits and snapshot reads side
// by side to verify the coarse lock keeps them race-free.
func TestBenchConcurrency(t *testing.T) {
	b := newTestBench(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if _, err := b.RunTrace(ctx, TraceRequest{Workers: 2}); err != nil {
					t.Errorf("RunTrace: %v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			label := fmt.Sprintf("L-dyn-%d", i)
			if _, err := b.AddOperator(OperatorSpec{Kind: optics.KindLens, Value: 15, Z: 30, Label: label}); err != nil {
				t.Errorf("AddOperator %s: %v", label, err)
				return
			}
			if err := b.RemoveOperator(label); err != nil {
				t.Errorf("RemoveOperator %s: %v", label, err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if snap := b.Snapshot(); len(snap.Operators) < 3 {
				t.Errorf("snapshot has %d operators, want at least 3", len(snap.Operators))
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()

	snap := b.Snapshot()
	if len(snap.Operators) != 3 {
		t.Fatalf("operators after churn = %d, want 3", len(snap.Operators))
	}
}
