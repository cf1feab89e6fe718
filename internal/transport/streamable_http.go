package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/conikeec/mcp-probe/internal/correlate"
	"github.com/conikeec/mcp-probe/internal/oauth"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

// ProtocolVersion is the MCP-Protocol-Version header value this binding
// advertises on every request.
const ProtocolVersion = "2025-06-18"

// sessionIDPattern is the accepted shape of an Mcp-Session-Id: at least 16
// characters of letters, digits, or hyphens. Any session id the server
// assigns that fails this is treated as a protocol violation.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{16,}$`)

// StreamableHTTPConfig configures the single-endpoint Streamable HTTP
// binding introduced in MCP 2025-03-26.
type StreamableHTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	Client  *http.Client

	// AllowInsecure permits a plain-HTTP BaseURL for a non-local host.
	// Left false, NewStreamableHTTP rejects anything but HTTPS for hosts other than localhost/127.0.0.1/::1.
	AllowInsecure bool
}

// StreamableHTTP implements Transport over a single POST endpoint whose
// response is either a direct JSON body or an SSE stream, with optional
// session-id and Last-Event-ID-based resumability.
type StreamableHTTP struct {
	counters

	cfg       StreamableHTTPConfig
	rpcClient *http.Client
	sseClient *http.Client

	mu          sync.Mutex
	connected   bool
	sessionID   string
	lastEventID string

	table   *correlate.Table
	notifCh chan *ServerMessage
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStreamableHTTP validates cfg's security policy and constructs the
// binding. Connect performs no network I/O of its own (the binding is
// request-driven); it only validates readiness.
func NewStreamableHTTP(cfg StreamableHTTPConfig) (*StreamableHTTP, error) {
	if err := checkSecurityPolicy(cfg.BaseURL, cfg.AllowInsecure); err != nil {
		return nil, err
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &StreamableHTTP{
		cfg:       cfg,
		rpcClient: cloneHTTPClient(client),
		sseClient: cloneHTTPClient(client),
		table:     correlate.New(),
		notifCh:   make(chan *ServerMessage, 64),
		done:      make(chan struct{}),
	}, nil
}

// checkSecurityPolicy rejects plaintext HTTP to a non-local host, per the
// binding's security invariant.
func checkSecurityPolicy(rawURL string, allowInsecure bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidConfigError{Transport: KindStreamableHTTP, Reason: fmt.Sprintf("parse base_url: %v", err)}
	}
	if u.Scheme == "https" {
		return nil
	}
	if allowInsecure {
		return nil
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return nil
	}
	return &InvalidConfigError{Transport: KindStreamableHTTP, Reason: fmt.Sprintf("base_url %q must use https for non-local hosts", rawURL)}
}

// Connect marks the transport usable. There is no persistent connection to
// establish; each request is an independent POST.
func (t *StreamableHTTP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return &ConnectionFailedError{Transport: KindStreamableHTTP, Reason: "already connected"}
	}
	t.connected = true
	return nil
}

// Disconnect tears the session down server-side (best-effort DELETE) and
// fails every outstanding waiter atomically.
func (t *StreamableHTTP) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	sessionID := t.sessionID
	t.mu.Unlock()

	t.table.FailAll(&DisconnectedError{Transport: KindStreamableHTTP, Reason: "disconnect"})
	close(t.done)
	t.wg.Wait()

	if sessionID != "" {
		t.sendDelete(ctx, sessionID)
	}
	return nil
}

func (t *StreamableHTTP) sendDelete(ctx context.Context, sessionID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.cfg.BaseURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("Mcp-Session-Id", sessionID)
	t.applyHeaders(req)
	resp, err := t.rpcClient.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (t *StreamableHTTP) applyHeaders(req *http.Request) {
	req.Header.Set("MCP-Protocol-Version", ProtocolVersion)
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// SendRequest POSTs req and returns its correlated response, whether the
// server answers inline (application/json) or via an SSE stream
// (text/event-stream) carrying the same message.
func (t *StreamableHTTP) SendRequest(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return nil, &NotConnectedError{Transport: KindStreamableHTTP}
	}

	if timeout <= 0 {
		timeout = t.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	id := req.ID.String()
	waiter, err := t.table.Register(id, req.Method, timeout)
	if err != nil {
		return nil, err
	}

	if err := t.post(ctx, req); err != nil {
		t.table.Cancel(id)
		return nil, err
	}
	t.requestsSent.Add(1)

	resp, err := waiter.Wait(ctx)
	if err != nil {
		return nil, translateWaitErr(err, KindStreamableHTTP)
	}
	return resp, nil
}

// SendNotification POSTs a fire-and-forget notification.
func (t *StreamableHTTP) SendNotification(ctx context.Context, notif *protocol.Notification) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return &NotConnectedError{Transport: KindStreamableHTTP}
	}
	if err := t.post(ctx, notif); err != nil {
		return err
	}
	t.requestsSent.Add(1)
	return nil
}

func (t *StreamableHTTP) post(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &SerializationError{Transport: KindStreamableHTTP, Reason: err.Error()}
	}
	if DebugLogging {
		log.Printf("streamable-http Send: %s", data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(data))
	if err != nil {
		return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	t.applyHeaders(httpReq)

	t.mu.Lock()
	sessionID := t.sessionID
	t.mu.Unlock()
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := t.rpcClient.Do(httpReq)
	if err != nil {
		t.errors.Add(1)
		return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := t.captureSessionID(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.errors.Add(1)
		challenge := oauth.ParseBearerChallenge(resp.Header)
		if challenge != nil {
			return &UnauthorizedError{Transport: KindStreamableHTTP, Realm: challenge.Realm, ResourceMetadata: challenge.ResourceMetadata}
		}
		return &UnauthorizedError{Transport: KindStreamableHTTP}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		t.errors.Add(1)
		return &NetworkError{Transport: KindStreamableHTTP, Reason: fmt.Sprintf("POST: %s: %s", resp.Status, body)}
	}
	if resp.StatusCode == http.StatusAccepted {
		return nil // notification or request answered asynchronously on a later GET/SSE push
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/event-stream"):
		return t.consumeSSE(ctx, resp.Body)
	case strings.HasPrefix(contentType, "application/json"):
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error(), Err: err}
		}
		if len(data) > 0 {
			t.dispatch(data)
		}
		return nil
	default:
		return nil
	}
}

// captureSessionID assigns the session id from the server's first response
// carrying one. A session id, once assigned, is immutable for the
// transport's lifetime: a later response attempting a different value is
// a protocol violation and is rejected rather than silently adopted.
func (t *StreamableHTTP) captureSessionID(resp *http.Response) error {
	sid := resp.Header.Get("Mcp-Session-Id")
	if sid == "" {
		return nil
	}
	if !sessionIDPattern.MatchString(sid) {
		return &InvalidConfigError{Transport: KindStreamableHTTP, Reason: fmt.Sprintf("server assigned malformed session id %q", sid)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == "" {
		t.sessionID = sid
		return nil
	}
	if t.sessionID != sid {
		return &ConnectionFailedError{Transport: KindStreamableHTTP, Reason: "server attempted to change an already-assigned session id"}
	}
	return nil
}

func (t *StreamableHTTP) consumeSSE(ctx context.Context, body io.Reader) error {
	scanner := newSSEScanner(body, MaxSSEEventSize)
	for {
		event, err := scanner.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error(), Err: err}
		}
		if event.ID != "" {
			t.mu.Lock()
			t.lastEventID = event.ID
			t.mu.Unlock()
		}
		if len(event.Data) == 0 {
			continue
		}
		if event.Event != "" && event.Event != "message" {
			continue
		}
		t.dispatch(event.Data)
	}
}

func (t *StreamableHTTP) dispatch(raw []byte) {
	kind, err := protocol.Classify(raw)
	if err != nil {
		t.errors.Add(1)
		return
	}
	switch kind {
	case protocol.KindResponse:
		resp, err := protocol.DecodeResponse(raw)
		if err != nil {
			t.errors.Add(1)
			log.Printf("streamable-http: dropping malformed response: %v", err)
			return
		}
		t.responsesRecv.Add(1)
		t.table.Complete(resp.ID.String(), resp)
	case protocol.KindNotification:
		n, err := protocol.DecodeNotification(raw)
		if err != nil {
			t.errors.Add(1)
			return
		}
		t.notificationsRecv.Add(1)
		t.enqueue(&ServerMessage{Notification: n})
	case protocol.KindRequest:
		req, err := protocol.DecodeRequest(raw)
		if err != nil {
			t.errors.Add(1)
			return
		}
		t.enqueue(&ServerMessage{Request: req})
	}
}

func (t *StreamableHTTP) enqueue(msg *ServerMessage) {
	select {
	case t.notifCh <- msg:
	case <-t.done:
	}
}

// CanResume reports whether the server has assigned both a session id and
// at least one event id, the two preconditions for reattaching an
// interrupted stream via GET with Last-Event-ID.
func (t *StreamableHTTP) CanResume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID != "" && t.lastEventID != ""
}

// Resume opens a GET stream against the base URL carrying Last-Event-ID,
// replaying any server-to-client messages sent since the last event this
// transport observed. It runs until the server closes the stream or ctx
// is cancelled, dispatching messages exactly like a POST response stream.
func (t *StreamableHTTP) Resume(ctx context.Context) error {
	if !t.CanResume() {
		return &ConnectionFailedError{Transport: KindStreamableHTTP, Reason: "no session/event to resume from"}
	}

	t.mu.Lock()
	sessionID := t.sessionID
	lastEventID := t.lastEventID
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL, nil)
	if err != nil {
		return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error()}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Last-Event-ID", lastEventID)
	t.applyHeaders(req)

	resp, err := t.sseClient.Do(req)
	if err != nil {
		return &NetworkError{Transport: KindStreamableHTTP, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return &ConnectionFailedError{Transport: KindStreamableHTTP, Reason: "server does not support resumable GET streams"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &NetworkError{Transport: KindStreamableHTTP, Reason: fmt.Sprintf("GET resume: %s: %s", resp.Status, body)}
	}

	t.wg.Add(1)
	defer t.wg.Done()
	return t.consumeSSE(ctx, resp.Body)
}

// ReceiveMessage returns the next queued notification or server-to-client request.
func (t *StreamableHTTP) ReceiveMessage(ctx context.Context, timeout time.Duration) (*ServerMessage, error) {
	var timerCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerCh = timer.C
	}
	select {
	case msg, ok := <-t.notifCh:
		if !ok {
			return nil, &DisconnectedError{Transport: KindStreamableHTTP, Reason: "transport closed"}
		}
		return msg, nil
	case <-timerCh:
		return nil, &TimeoutError{Transport: KindStreamableHTTP, Where: "receive_message", Duration: timeout}
	case <-t.done:
		return nil, &DisconnectedError{Transport: KindStreamableHTTP, Reason: "transport closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsConnected reports whether the transport has been connected (and not
// yet disconnected); unlike stdio/legacy-SSE there is no persistent socket.
func (t *StreamableHTTP) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Info returns a snapshot of connection state and traffic counters.
func (t *StreamableHTTP) Info() Info {
	sent, recv, notif, errs := t.counters.snapshot()
	t.mu.Lock()
	connected := t.connected
	sessionID := t.sessionID
	lastEventID := t.lastEventID
	t.mu.Unlock()
	return Info{
		Kind:              KindStreamableHTTP,
		Connected:         connected,
		RequestsSent:      sent,
		ResponsesRecv:     recv,
		NotificationsRecv: notif,
		Errors:            errs,
		Metadata: map[string]any{
			"base_url":      t.cfg.BaseURL,
			"session_id":    sessionID,
			"last_event_id": lastEventID,
			"can_resume":    sessionID != "" && lastEventID != "",
		},
	}
}
