// Package client implements C4: a typed MCP client wrapping a
// transport.Transport with the initialize/negotiate state machine and
// capability-call methods.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conikeec/mcp-probe/internal/events"
	"github.com/conikeec/mcp-probe/internal/flow"
	"github.com/conikeec/mcp-probe/internal/protocol"
	"github.com/conikeec/mcp-probe/internal/transport"
)

// DefaultTimeout is used for any call that doesn't specify one.
const DefaultTimeout = 30 * time.Second

// SupportedProtocolVersions lists the versions tried during Connect, in
// order of preference.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// Client drives a single MCP server session over a transport.Transport.
type Client struct {
	t      transport.Transport
	nextID atomic.Int64

	mu    sync.Mutex
	state State
	info  *protocol.InitializeResult
	err   error

	// id labels this client's events on a shared Bus (e.g. the profile
	// ID); may be left empty for a single implicit connection.
	id  string
	bus *events.Bus
}

// New wraps t; the client starts in StateIdle until Connect is called.
func New(t transport.Transport) *Client {
	return &Client{t: t, state: StateIdle}
}

// WithEvents attaches a Bus that lifecycle transitions, notifications, and
// graceful fallbacks are published to, labeled with id. Passing a nil bus
// disables publishing (the zero value already behaves this way).
func (c *Client) WithEvents(id string, bus *events.Bus) *Client {
	c.id = id
	c.bus = bus
	return c
}

func (c *Client) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func statePhase(s State) events.Phase {
	switch s {
	case StateConnecting:
		return events.PhaseConnecting
	case StateInitializing:
		return events.PhaseInitializing
	case StateAwaitingResponse:
		return events.PhaseAwaitingResponse
	case StateProcessingCapabilities:
		return events.PhaseProcessingCapabilities
	case StateFinalizing:
		return events.PhaseFinalizing
	case StateReady:
		return events.PhaseReady
	case StateRetrying:
		return events.PhaseRetrying
	case StateFailed:
		return events.PhaseFailed
	default:
		return events.PhaseIdle
	}
}

// State returns the client's current state machine node.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old != s {
		c.publish(events.NewStatusChangedEvent(c.id, statePhase(old), statePhase(s)))
	}
}

// ServerInfo returns the result of a completed initialize handshake, or
// nil if the client has not reached StateReady.
func (c *Client) ServerInfo() *protocol.InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Client) nextRequestID() protocol.ID {
	return protocol.NewNumberID(c.nextID.Add(1))
}

// Connect drives the standard initialization flow: transport Connect,
// send "initialize", wait for the response, process capabilities, send
// the "notifications/initialized" notification, and transition to
// StateReady. Each stage is a named flow.Step so failures are reported
// with the stage that produced them.
func (c *Client) Connect(ctx context.Context, clientInfo protocol.Implementation, timeout time.Duration) (*protocol.InitializeResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var result *protocol.InitializeResult
	var negotiatedVersion string

	f := &flow.Flow{
		Name:    "client.connect",
		Timeout: timeout,
		Steps: []flow.Step{
			{
				Name: "connect_transport",
				Run: func(ctx context.Context) error {
					c.setState(StateConnecting)
					return c.t.Connect(ctx)
				},
			},
			{
				Name:      "initialize",
				Retryable: true,
				Run: func(ctx context.Context) error {
					c.setState(StateInitializing)
					c.setState(StateAwaitingResponse)
					res, version, err := c.tryInitialize(ctx, clientInfo)
					if err != nil {
						return err
					}
					result = res
					negotiatedVersion = version
					return nil
				},
			},
			{
				Name: "process_capabilities",
				Run: func(ctx context.Context) error {
					c.setState(StateProcessingCapabilities)
					// Capability processing is structural validation only;
					// the negotiated server capabilities are exposed as-is
					// via ServerInfo() for callers to branch on.
					if result == nil {
						return fmt.Errorf("no initialize result to process")
					}
					return nil
				},
			},
			{
				Name: "send_initialized",
				Run: func(ctx context.Context) error {
					c.setState(StateFinalizing)
					notif, err := protocol.NewNotification("notifications/initialized", nil)
					if err != nil {
						return err
					}
					return c.t.SendNotification(ctx, notif)
				},
			},
		},
	}

	if _, err := f.Run(ctx); err != nil {
		c.mu.Lock()
		c.err = err
		old := c.state
		c.state = StateFailed
		c.mu.Unlock()
		c.publish(events.NewStatusChangedEvent(c.id, statePhase(old), events.PhaseFailed))
		return nil, &InitializeFailedError{Err: err}
	}

	c.mu.Lock()
	c.info = result
	old := c.state
	c.state = StateReady
	c.mu.Unlock()
	c.publish(events.NewStatusChangedEvent(c.id, statePhase(old), events.PhaseReady))

	log.Printf("client: ready (protocol=%s server=%s/%s)", negotiatedVersion, result.ServerInfo.Name, result.ServerInfo.Version)
	return result, nil
}

func (c *Client) tryInitialize(ctx context.Context, clientInfo protocol.Implementation) (*protocol.InitializeResult, string, error) {
	var lastErr error
	for _, version := range SupportedProtocolVersions {
		params := protocol.InitializeParams{
			ProtocolVersion: version,
			Capabilities:    protocol.Capabilities{},
			ClientInfo:      clientInfo,
		}
		raw, err := c.call(ctx, "initialize", params, DefaultTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		var result protocol.InitializeResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, "", fmt.Errorf("decode initialize result: %w", err)
		}
		return &result, version, nil
	}
	return nil, "", fmt.Errorf("no protocol version accepted: %w", lastErr)
}

// call sends a request and returns the raw result bytes, translating a
// JSON-RPC error into a Go error.
func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	req, err := protocol.NewRequest(c.nextRequestID(), method, json.RawMessage(paramsJSON))
	if err != nil {
		return nil, err
	}
	resp, err := c.t.SendRequest(ctx, req, timeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *Client) requireReady() error {
	if c.State() != StateReady {
		return &NotReadyError{State: c.State()}
	}
	return nil
}

// ListTools returns the server's tools, or an empty list if the server
// does not implement tools/list (method not found is not an error here).
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, "tools/list", struct{}{}, DefaultTimeout)
	if err != nil {
		if isMethodNotFound(err) {
			c.warnf("server does not support tools/list")
			return nil, nil
		}
		return nil, err
	}
	var result protocol.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// ListResources returns the server's resources, or an empty list if
// unsupported.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, "resources/list", struct{}{}, DefaultTimeout)
	if err != nil {
		if isMethodNotFound(err) {
			c.warnf("server does not support resources/list")
			return nil, nil
		}
		return nil, err
	}
	var result protocol.ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resources/list result: %w", err)
	}
	return result.Resources, nil
}

// ListPrompts returns the server's prompts, or an empty list if
// unsupported.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, "prompts/list", struct{}{}, DefaultTimeout)
	if err != nil {
		if isMethodNotFound(err) {
			c.warnf("server does not support prompts/list")
			return nil, nil
		}
		return nil, err
	}
	var result protocol.ListPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode prompts/list result: %w", err)
	}
	return result.Prompts, nil
}

// CallTool invokes a tool. Servers that reply with a body that doesn't
// conform to CallToolResponse (a bare string, a raw value, etc.) are
// tolerated: the raw result is wrapped as a single text content block
// with is_error=false, and a warning is logged, rather than failing the
// call outright.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage, timeout time.Duration) (*protocol.CallToolResponse, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	params := protocol.CallToolParams{Name: name, Arguments: arguments}
	raw, err := c.call(ctx, "tools/call", params, timeout)
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResponse
	if err := json.Unmarshal(raw, &result); err != nil || len(result.Content) == 0 {
		c.warnf("tool %q returned a non-conforming result, wrapping as text: %v", name, err)
		var pretty bytes.Buffer
		text := string(raw)
		if indentErr := json.Indent(&pretty, raw, "", "  "); indentErr == nil {
			text = pretty.String()
		}
		return &protocol.CallToolResponse{
			Content: []protocol.ToolResult{protocol.NewTextResult(text)},
			IsError: false,
		}, nil
	}
	return &result, nil
}

// ReadResource fetches a resource by URI. Unlike CallTool, the response
// must conform to the schema; a malformed body is an error.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResponse, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.call(ctx, "resources/read", protocol.ReadResourceParams{URI: uri}, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result protocol.ReadResourceResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resources/read result: %w", err)
	}
	return &result, nil
}

// GetPrompt fetches a rendered prompt by name and arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResponse, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	params := protocol.GetPromptParams{Name: name, Arguments: arguments}
	raw, err := c.call(ctx, "prompts/get", params, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result protocol.GetPromptResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode prompts/get result: %w", err)
	}
	return &result, nil
}

// SendRequest is the escape hatch for methods this client has no typed
// wrapper for.
func (c *Client) SendRequest(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return c.call(ctx, method, params, timeout)
}

// Close disconnects the underlying transport.
func (c *Client) Close(ctx context.Context) error {
	return c.t.Disconnect(ctx)
}

// warnf logs and publishes a WarningEvent for a non-fatal condition.
func (c *Client) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("client: %s", msg)
	c.publish(events.NewWarningEvent(c.id, msg))
}

// WatchNotifications drains the transport's notification queue until ctx
// is canceled, publishing each one as a NotificationReceivedEvent. Intended
// to run in its own goroutine alongside a Ready client.
func (c *Client) WatchNotifications(ctx context.Context) {
	for {
		msg, err := c.t.ReceiveMessage(ctx, 0)
		if err != nil {
			return
		}
		switch {
		case msg == nil:
			continue
		case msg.Notification != nil:
			c.publish(events.NewNotificationReceivedEvent(c.id, msg.Notification.Method, msg.Notification.Params))
		case msg.Request != nil:
			c.publish(events.NewNotificationReceivedEvent(c.id, msg.Request.Method, msg.Request.Params))
		}
	}
}

func isMethodNotFound(err error) bool {
	rpcErr, ok := err.(*protocol.Error)
	return ok && rpcErr.Code == protocol.CodeMethodNotFound
}
