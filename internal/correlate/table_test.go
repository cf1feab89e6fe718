package correlate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conikeec/mcp-probe/internal/protocol"
)

func TestTable_RegisterCompleteRoundTrip(t *testing.T) {
	tbl := New()
	waiter, err := tbl.Register("1", "initialize", time.Second)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tbl.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d, want 1", tbl.Outstanding())
	}

	want, err := protocol.NewResultResponse(protocol.NewNumberID(1), "ok")
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	tbl.Complete("1", want)

	got, err := waiter.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != want {
		t.Errorf("Wait returned a different response than Complete delivered")
	}
	if tbl.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after Complete, want 0", tbl.Outstanding())
	}
}

func TestTable_Register_RejectsDuplicateID(t *testing.T) {
	tbl := New()
	if _, err := tbl.Register("dup", "m", time.Second); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := tbl.Register("dup", "m", time.Second)
	if !errors.Is(err, ErrIDInUse) {
		t.Errorf("expected ErrIDInUse, got %v", err)
	}
}

func TestTable_Complete_UnknownIDIsDiscardedNotFatal(t *testing.T) {
	tbl := New()
	resp, _ := protocol.NewResultResponse(protocol.NewNumberID(99), "ignored")
	tbl.Complete("does-not-exist", resp) // must not panic
}

func TestWaiter_Wait_TimesOutAndRemovesEntry(t *testing.T) {
	tbl := New()
	waiter, err := tbl.Register("t1", "slow", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = waiter.Wait(context.Background())
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.Method != "slow" {
		t.Errorf("TimeoutError.Method = %q, want slow", timeoutErr.Method)
	}
	if tbl.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after timeout, want 0 (entry must be removed)", tbl.Outstanding())
	}

	// A late response for the now-removed id must not panic or block.
	resp, _ := protocol.NewResultResponse(protocol.NewNumberID(1), "late")
	tbl.Complete("t1", resp)
}

func TestWaiter_Wait_ContextCanceled(t *testing.T) {
	tbl := New()
	waiter, err := tbl.Register("c1", "m", time.Second)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = waiter.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if tbl.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after cancellation, want 0", tbl.Outstanding())
	}
}

func TestTable_FailAll_ResolvesEveryOutstandingWaiter(t *testing.T) {
	tbl := New()
	w1, _ := tbl.Register("a", "m1", time.Second)
	w2, _ := tbl.Register("b", "m2", time.Second)

	failErr := errors.New("disconnected")
	tbl.FailAll(failErr)

	if tbl.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after FailAll, want 0", tbl.Outstanding())
	}

	for _, w := range []*Waiter{w1, w2} {
		_, err := w.Wait(context.Background())
		if !errors.Is(err, failErr) {
			t.Errorf("Wait after FailAll = %v, want %v", err, failErr)
		}
	}
}

func TestTable_Cancel_RemovesEntryWithoutDelivering(t *testing.T) {
	tbl := New()
	if _, err := tbl.Register("x", "m", time.Second); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tbl.Cancel("x")
	if tbl.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after Cancel, want 0", tbl.Outstanding())
	}
	// Registering the same id again must succeed now that it's freed.
	if _, err := tbl.Register("x", "m", time.Second); err != nil {
		t.Errorf("Register after Cancel: %v", err)
	}
}

func TestTable_OutOfOrderDelivery_IsolatesEachWaiter(t *testing.T) {
	tbl := New()
	w1, _ := tbl.Register("1", "m1", time.Second)
	w2, _ := tbl.Register("2", "m2", time.Second)

	r2, _ := protocol.NewResultResponse(protocol.NewNumberID(2), "second")
	r1, _ := protocol.NewResultResponse(protocol.NewNumberID(1), "first")

	// Deliver out of registration order.
	tbl.Complete("2", r2)
	tbl.Complete("1", r1)

	got1, err := w1.Wait(context.Background())
	if err != nil {
		t.Fatalf("w1.Wait: %v", err)
	}
	if got1 != r1 {
		t.Errorf("w1 received the wrong response")
	}

	got2, err := w2.Wait(context.Background())
	if err != nil {
		t.Fatalf("w2.Wait: %v", err)
	}
	if got2 != r2 {
		t.Errorf("w2 received the wrong response")
	}
}
