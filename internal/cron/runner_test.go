package cronrunner

import (
	"context"
	"testing"
	"time"
)

func TestRunner_RunsJobAndRecoversPanic(t *testing.T) {
	r := New(nil, context.Background())
	ran := make(chan struct{}, 4)
	if _, err := r.Add("tick", "@every 1s", time.Second, func(ctx context.Context) {
		ran <- struct{}{}
	}); err != nil {
		t.Fatalf("add err=%v", err)
	}
	if _, err := r.Add("boom", "@every 1s", 0, func(ctx context.Context) {
		panic("boom")
	}); err != nil {
		t.Fatalf("add err=%v", err)
	}
	if r.Entries() != 2 {
		t.Fatalf("entries=%d want=2", r.Entries())
	}
	r.Start()
	defer r.Stop()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}

func TestRunner_RejectsBadSpec(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Add("bad", "every minute", 0, func(context.Context) {}); err == nil {
		t.Fatalf("want error for bad spec")
	}
}

func TestRunner_SkipsWhenBaseContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, ctx)
	ran := make(chan struct{}, 1)
	_, _ = r.Add("tick", "@every 1s", 0, func(context.Context) { ran <- struct{}{} })
	r.Start()
	defer r.Stop()
	select {
	case <-ran:
		t.Fatalf("job ran after shutdown")
	case <-time.After(1500 * time.Millisecond):
	}
}
