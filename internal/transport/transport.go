// Package transport implements the three MCP wire bindings (stdio, legacy
// HTTP+SSE, and Streamable HTTP) behind a single Transport contract.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/conikeec/mcp-probe/internal/correlate"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

// DebugLogging enables verbose wire-level tracing ("Send:"/"Recv:" lines),
// matching the teacher's package-level debug toggle.
var DebugLogging bool

// ServerMessage is a server-initiated message surfaced by ReceiveMessage:
// either a notification or a server-to-client request. Exactly one field
// is populated.
type ServerMessage struct {
	Notification *protocol.Notification
	Request      *protocol.Request
}

// Transport is the uniform contract every wire binding implements.
// Correlation of requests to responses is owned by each binding
// internally (via internal/correlate); callers only see typed envelopes.
type Transport interface {
	// Connect establishes the channel. Calling Connect again after success
	// is an error.
	Connect(ctx context.Context) error
	// Disconnect releases resources. Subsequent sends fail with
	// NotConnectedError; ReceiveMessage fails with DisconnectedError.
	Disconnect(ctx context.Context) error
	// SendRequest serializes and transmits a request, then blocks for its
	// correlated response (subject to ctx and timeout, whichever is
	// tighter).
	SendRequest(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error)
	// SendNotification transmits a fire-and-forget message, returning once
	// the bytes are handed to the OS/network stack.
	SendNotification(ctx context.Context, notif *protocol.Notification) error
	// ReceiveMessage returns the next server-initiated notification or
	// server-to-client request. It never returns a response to an
	// outstanding client request; those resolve their waiter instead.
	ReceiveMessage(ctx context.Context, timeout time.Duration) (*ServerMessage, error)
	// IsConnected reports current connection state.
	IsConnected() bool
	// Info returns a snapshot of transport identity, counters, and
	// binding-specific metadata.
	Info() Info
}

// Info is a point-in-time snapshot of a transport's identity and traffic
// counters, safe to read concurrently with transport operations.
type Info struct {
	Kind              Kind
	Connected         bool
	RequestsSent      int64
	ResponsesRecv     int64
	NotificationsRecv int64
	Errors            int64
	Metadata          map[string]any
}

// counters is embedded by each binding for its Info() traffic stats.
type counters struct {
	requestsSent      atomic.Int64
	responsesRecv     atomic.Int64
	notificationsRecv atomic.Int64
	errors            atomic.Int64
}

func (c *counters) snapshot() (sent, recv, notif, errs int64) {
	return c.requestsSent.Load(), c.responsesRecv.Load(), c.notificationsRecv.Load(), c.errors.Load()
}

// ringBuffer is a small bounded FIFO of text lines, used for the stdio
// binding's stderr tail surfaced via Info().Metadata["stderr_tail"].
type ringBuffer struct {
	lines []string
	max   int
}

func newRingBuffer(max int) *ringBuffer {
	return &ringBuffer{max: max}
}

func (r *ringBuffer) add(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *ringBuffer) snapshot() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// translateWaitErr converts a correlate.TimeoutError into this package's
// TimeoutError (tagged with the binding's Kind), passing any other error
// (context cancellation, disconnect) through unchanged.
func translateWaitErr(err error, kind Kind) error {
	var te *correlate.TimeoutError
	if errors.As(err, &te) {
		return &TimeoutError{Transport: kind, Where: te.Method, Duration: te.Duration}
	}
	return err
}

// cloneHTTPClient returns a shallow copy of client with its own Transport,
// so per-binding timeout tuning never mutates a caller-supplied client
// shared elsewhere. Mirrors the teacher's defaultHTTPTransport/
// cloneHTTPClient split for the Streamable HTTP binding.
func cloneHTTPClient(client *http.Client) *http.Client {
	clone := *client
	if clone.Transport == nil {
		clone.Transport = defaultHTTPTransport()
	}
	return &clone
}

func defaultHTTPTransport() http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	t := base.Clone()
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}
