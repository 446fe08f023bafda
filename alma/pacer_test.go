package alma

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_SpacesCalls(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)

	start := time.Now()
	for range 3 {
		if err := p.Wait(t.Context()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// first call is free, the next two wait one delay each
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 60ms", elapsed)
	}
}

func TestPacer_Disabled(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for range 5 {
		if err := p.Wait(t.Context()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled pacer waited %v", elapsed)
	}
}

func TestPacer_ContextCanceled(t *testing.T) {
	p := NewPacer(time.Hour)
	if err := p.Wait(t.Context()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}
}
