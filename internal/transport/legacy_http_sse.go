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
	"strings"
	"sync"
	"time"

	"github.com/conikeec/mcp-probe/internal/correlate"
	"github.com/conikeec/mcp-probe/internal/oauth"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

// LegacyHTTPSSEConfig configures the pre-2025 HTTP+SSE binding: a GET
// {base}/sse event stream and a POST {base}/message endpoint.
type LegacyHTTPSSEConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	Client  *http.Client
}

// LegacyHTTPSSE implements Transport for servers using the two-endpoint
// SSE binding that predates Streamable HTTP.
type LegacyHTTPSSE struct {
	counters

	cfg       LegacyHTTPSSEConfig
	sseClient *http.Client
	rpcClient *http.Client

	mu          sync.Mutex
	connected   bool
	messageURL  string // resolved from the server's first "endpoint" SSE event
	sseBody     io.ReadCloser
	sseCancel   context.CancelFunc
	readyCh     chan struct{}
	readyClosed bool

	table   *correlate.Table
	notifCh chan *ServerMessage
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewLegacyHTTPSSE creates the legacy HTTP+SSE transport.
func NewLegacyHTTPSSE(cfg LegacyHTTPSSEConfig) *LegacyHTTPSSE {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &LegacyHTTPSSE{
		cfg:       cfg,
		sseClient: cloneHTTPClient(client),
		rpcClient: cloneHTTPClient(client),
		readyCh:   make(chan struct{}),
		table:     correlate.New(),
		notifCh:   make(chan *ServerMessage, 64),
		done:      make(chan struct{}),
	}
}

// Connect opens the SSE stream and waits for the server's endpoint event.
func (t *LegacyHTTPSSE) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: "already connected"}
	}
	t.mu.Unlock()

	sseURL := strings.TrimRight(t.cfg.BaseURL, "/") + "/sse"
	sseCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(sseCtx, http.MethodGet, sseURL, nil)
	if err != nil {
		cancel()
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: err.Error()}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	t.applyHeaders(req)

	resp, err := t.sseClient.Do(req)
	if err != nil {
		cancel()
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		cancel()
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: fmt.Sprintf("GET /sse: %s: %s", resp.Status, body)}
	}

	t.mu.Lock()
	t.connected = true
	t.sseBody = resp.Body
	t.sseCancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readLoop(resp.Body)

	// Wait for the endpoint event (or context deadline) before returning,
	// so the first SendRequest has somewhere to POST to.
	select {
	case <-t.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectReadyTimeout(t.cfg.Timeout)):
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: "timed out waiting for endpoint event"}
	}
}

func connectReadyTimeout(configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return 30 * time.Second
}

func (t *LegacyHTTPSSE) readLoop(body io.ReadCloser) {
	defer t.wg.Done()
	defer body.Close()

	scanner := newSSEScanner(body, MaxSSEEventSize)
	for {
		event, err := scanner.Next()
		if err != nil {
			if err != io.EOF {
				t.errors.Add(1)
				log.Printf("legacy-sse: stream read error: %v", err)
			}
			return
		}

		if event.Event == "endpoint" {
			t.resolveEndpoint(string(event.Data))
			continue
		}

		if len(event.Data) == 0 {
			continue
		}
		t.dispatch(event.Data)
	}
}

func (t *LegacyHTTPSSE) resolveEndpoint(path string) {
	base, err := url.Parse(t.cfg.BaseURL)
	if err != nil {
		return
	}
	ep, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return
	}
	resolved := base.ResolveReference(ep).String()

	t.mu.Lock()
	t.messageURL = resolved
	if !t.readyClosed {
		t.readyClosed = true
		close(t.readyCh)
	}
	t.mu.Unlock()
}

func (t *LegacyHTTPSSE) dispatch(raw []byte) {
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
			log.Printf("legacy-sse: dropping malformed response: %v", err)
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

func (t *LegacyHTTPSSE) enqueue(msg *ServerMessage) {
	select {
	case t.notifCh <- msg:
	case <-t.done:
	}
}

func (t *LegacyHTTPSSE) applyHeaders(req *http.Request) {
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// SendRequest POSTs the request to the session's message endpoint and
// waits for the correlated response on the SSE stream.
func (t *LegacyHTTPSSE) SendRequest(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	t.mu.Lock()
	connected := t.connected
	messageURL := t.messageURL
	t.mu.Unlock()
	if !connected {
		return nil, &NotConnectedError{Transport: KindLegacyHTTPSSE}
	}
	if messageURL == "" {
		return nil, &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: "no message endpoint negotiated"}
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

	if err := t.post(ctx, messageURL, req); err != nil {
		t.table.Cancel(id)
		return nil, err
	}
	t.requestsSent.Add(1)

	resp, err := waiter.Wait(ctx)
	if err != nil {
		return nil, translateWaitErr(err, KindLegacyHTTPSSE)
	}
	return resp, nil
}

// SendNotification POSTs the notification to the message endpoint.
func (t *LegacyHTTPSSE) SendNotification(ctx context.Context, notif *protocol.Notification) error {
	t.mu.Lock()
	connected := t.connected
	messageURL := t.messageURL
	t.mu.Unlock()
	if !connected {
		return &NotConnectedError{Transport: KindLegacyHTTPSSE}
	}
	if messageURL == "" {
		return &ConnectionFailedError{Transport: KindLegacyHTTPSSE, Reason: "no message endpoint negotiated"}
	}
	if err := t.post(ctx, messageURL, notif); err != nil {
		return err
	}
	t.requestsSent.Add(1)
	return nil
}

func (t *LegacyHTTPSSE) post(ctx context.Context, messageURL string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &SerializationError{Transport: KindLegacyHTTPSSE, Reason: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(data))
	if err != nil {
		return &NetworkError{Transport: KindLegacyHTTPSSE, Reason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	t.applyHeaders(httpReq)

	resp, err := t.rpcClient.Do(httpReq)
	if err != nil {
		t.errors.Add(1)
		return &NetworkError{Transport: KindLegacyHTTPSSE, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		t.errors.Add(1)
		challenge := oauth.ParseBearerChallenge(resp.Header)
		if challenge != nil {
			return &UnauthorizedError{Transport: KindLegacyHTTPSSE, Realm: challenge.Realm, ResourceMetadata: challenge.ResourceMetadata}
		}
		return &UnauthorizedError{Transport: KindLegacyHTTPSSE}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		t.errors.Add(1)
		return &NetworkError{Transport: KindLegacyHTTPSSE, Reason: fmt.Sprintf("POST /message: %s: %s", resp.Status, body)}
	}
	return nil
}

// ReceiveMessage returns the next queued notification or server-to-client request.
func (t *LegacyHTTPSSE) ReceiveMessage(ctx context.Context, timeout time.Duration) (*ServerMessage, error) {
	var timerCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerCh = timer.C
	}
	select {
	case msg, ok := <-t.notifCh:
		if !ok {
			return nil, &DisconnectedError{Transport: KindLegacyHTTPSSE, Reason: "transport closed"}
		}
		return msg, nil
	case <-timerCh:
		return nil, &TimeoutError{Transport: KindLegacyHTTPSSE, Where: "receive_message", Duration: timeout}
	case <-t.done:
		return nil, &DisconnectedError{Transport: KindLegacyHTTPSSE, Reason: "transport closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect closes the SSE stream and fails all outstanding waiters atomically.
func (t *LegacyHTTPSSE) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	cancel := t.sseCancel
	t.mu.Unlock()

	t.table.FailAll(&DisconnectedError{Transport: KindLegacyHTTPSSE, Reason: "disconnect"})
	close(t.done)
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}

// IsConnected reports whether the SSE stream is open.
func (t *LegacyHTTPSSE) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Info returns a snapshot of connection state and traffic counters.
func (t *LegacyHTTPSSE) Info() Info {
	sent, recv, notif, errs := t.counters.snapshot()
	t.mu.Lock()
	connected := t.connected
	messageURL := t.messageURL
	t.mu.Unlock()
	return Info{
		Kind:              KindLegacyHTTPSSE,
		Connected:         connected,
		RequestsSent:      sent,
		ResponsesRecv:     recv,
		NotificationsRecv: notif,
		Errors:            errs,
		Metadata: map[string]any{
			"base_url":    t.cfg.BaseURL,
			"message_url": messageURL,
		},
	}
}
