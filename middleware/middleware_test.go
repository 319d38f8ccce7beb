package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/middleware"
)

type stubJob struct{ name string }

func (j stubJob) Name() string    { return j.name }
func (j stubJob) Ready() bool     { return true }
func (j stubJob) Blocked() bool   { return false }
func (j stubJob) Complete() bool  { return false }
func (j stubJob) Failed() bool    { return false }
func (j stubJob) Setup() error    { return nil }
func (j stubJob) Reset() error    { return nil }
func (j stubJob) Command() string { return "true" }

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ batchq.Job, _ *batchq.RunOptions, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ batchq.Job, _ *batchq.RunOptions, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "submit")
		return nil
	}

	err := chain(context.Background(), stubJob{name: "test"}, batchq.NewRunOptions(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "submit", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), stubJob{}, batchq.NewRunOptions(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ batchq.Job, _ *batchq.RunOptions, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("submit error")

	err := chain(context.Background(), stubJob{}, batchq.NewRunOptions(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	err := mw(context.Background(), stubJob{name: "panicky"}, batchq.NewRunOptions(), func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic submitting job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	err := mw(context.Background(), stubJob{name: "normal"}, batchq.NewRunOptions(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestTimeout_AppliesDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default())
	opts := batchq.NewRunOptions(batchq.WithTimeout(10 * time.Millisecond))

	err := mw(context.Background(), stubJob{name: "slow"}, opts, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestTimeout_ZeroMeansNoDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default())

	err := mw(context.Background(), stubJob{name: "unbounded"}, batchq.NewRunOptions(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("unexpected deadline on context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
