package domain

import (
	"context"
	"errors"
	"testing"
)

func TestNoopTransactor(t *testing.T) {
	called := false
	err := NoopTransactor{}.WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("WithinTransaction() = %v, called = %v", err, called)
	}

	boom := errors.New("boom")
	if err := (NoopTransactor{}).WithinTransaction(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("WithinTransaction() error = %v, want boom", err)
	}
}

func TestNoopTransactorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NoopTransactor{}.WithinTransaction(ctx, func(context.Context) error {
		t.Fatal("fn ran on a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WithinTransaction() error = %v, want context.Canceled", err)
	}
}
