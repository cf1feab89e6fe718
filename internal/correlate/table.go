// Package correlate implements the request/response correlation table
// shared by every transport binding: a map from request id to a
// single-shot waiter, with independent per-waiter timeouts and an atomic
// fail-all on disconnect.
package correlate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conikeec/mcp-probe/internal/protocol"
)

// ErrIDInUse is returned by Register when the id is already outstanding.
var ErrIDInUse = fmt.Errorf("correlate: id already outstanding")

// entry is one outstanding request: its notifier and bookkeeping for
// diagnostics (method name, deadline).
type entry struct {
	method   string
	deadline time.Time
	ch       chan *protocol.Response
	once     sync.Once
}

func (e *entry) deliver(resp *protocol.Response) {
	e.once.Do(func() {
		e.ch <- resp
		close(e.ch)
	})
}

// Table is a concurrency-safe id -> waiter map. All mutations (insert on
// send, complete on receive, remove on timeout or disconnect) are
// serialized by a single mutex; waiters themselves block independently on
// their own channel, so a slow consumer of one waiter never blocks
// another's completion.
type Table struct {
	mu             sync.Mutex
	entries        map[string]*entry
	lastFailAllErr atomic.Value // error
}

// New creates an empty correlation table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Waiter is a handle to one outstanding request, returned by Register.
type Waiter struct {
	table   *Table
	id      string
	method  string
	entry   *entry
	timeout time.Duration
}

// Register inserts a new outstanding entry for id. Reusing an id while
// the previous entry is still outstanding is an error.
func (t *Table) Register(id string, method string, timeout time.Duration) (*Waiter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrIDInUse, id)
	}

	e := &entry{
		method:   method,
		deadline: time.Now().Add(timeout),
		ch:       make(chan *protocol.Response, 1),
	}
	t.entries[id] = e

	return &Waiter{table: t, id: id, method: method, entry: e, timeout: timeout}, nil
}

// Complete resolves the waiter for id with resp and removes its entry.
// A response whose id matches no outstanding waiter is logged and
// discarded — it is not a fatal condition (e.g. a response arriving after
// the caller's own timeout already removed the entry).
func (t *Table) Complete(id string, resp *protocol.Response) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		log.Printf("correlate: response for unknown or expired id %q discarded", id)
		return
	}
	e.deliver(resp)
}

// Cancel removes id's entry without delivering a response, used when a
// registered request could never be sent (e.g. the transport write
// failed). The corresponding Waiter must not be waited on afterwards.
func (t *Table) Cancel(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if ok {
		e.once.Do(func() { close(e.ch) })
	}
}

// FailAll resolves every outstanding waiter with err and clears the
// table. Called on transport disconnect; the caller must ensure no new
// Register calls race with this (the transport is already marked closed).
func (t *Table) FailAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	if err != nil {
		t.lastFailAllErr.Store(err)
	}
	for _, e := range entries {
		e.once.Do(func() {
			close(e.ch)
		})
	}
}

// Wait blocks until the response arrives, the waiter's own deadline
// elapses, or ctx is done — whichever is first. On timeout, the waiter
// removes its own entry so a late response is discarded without
// affecting any other waiter.
func (w *Waiter) Wait(ctx context.Context) (*protocol.Response, error) {
	timer := time.NewTimer(time.Until(w.entry.deadline))
	defer timer.Stop()

	select {
	case resp, ok := <-w.entry.ch:
		if !ok {
			// Channel closed without a delivered value: either FailAll
			// ran (disconnect) or something else closed it defensively.
			if errv := w.table.lastFailAllErr.Load(); errv != nil {
				return nil, errv.(error)
			}
			return nil, fmt.Errorf("correlate: waiter for %q closed with no response", w.id)
		}
		return resp, nil

	case <-timer.C:
		w.table.remove(w.id)
		return nil, &TimeoutError{ID: w.id, Method: w.method, Duration: w.timeout}

	case <-ctx.Done():
		w.table.remove(w.id)
		return nil, ctx.Err()
	}
}

func (t *Table) remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// TimeoutError is returned by Wait when a request's deadline elapses
// before a response is correlated.
type TimeoutError struct {
	ID       string
	Method   string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("correlate: %s (id=%s) timed out after %s", e.Method, e.ID, e.Duration)
}

// Outstanding returns the number of currently registered waiters, for
// diagnostics and tests.
func (t *Table) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
