// Package validate implements C6: an ordered conformance suite that
// exercises a connected MCP server and reports a categorized result per
// check, rather than a single pass/fail.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conikeec/mcp-probe/internal/client"
	"github.com/conikeec/mcp-probe/internal/protocol"
	"github.com/conikeec/mcp-probe/internal/transport"
)

// Status is the outcome of one validation check.
type Status string

const (
	StatusPass     Status = "pass"
	StatusInfo     Status = "info"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
	StatusCritical Status = "critical"
	StatusSkipped  Status = "skipped"
)

// Category groups related checks for reporting.
type Category string

const (
	CategoryConnection    Category = "connection"
	CategoryHandshake     Category = "handshake"
	CategoryProtocol      Category = "protocol"
	CategoryTransport     Category = "transport"
	CategoryCapability    Category = "capability"
	CategorySchema        Category = "schema"
	CategoryErrorHandling Category = "error_handling"
)

// Result is one check's outcome.
type Result struct {
	TestID    string
	TestName  string
	Category  Category
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
}

// Options configures a Suite run.
type Options struct {
	TotalTimeout time.Duration // bounds the whole run; 0 means unbounded
	TestTimeout  time.Duration // per-test budget; exceeding it yields StatusCritical
	FailFast     bool          // stop after the first StatusCritical result
}

// Report is the outcome of a full Suite run.
type Report struct {
	RunID                string
	ServerName            string
	Results               []Result
	CompliancePercentage  float64
}

// Suite runs the conformance checks against an already-constructed
// transport.Transport (the suite builds its own client.Client over it and
// drives Connect/Initialize in the handshake check, while the connection
// and transport-feature checks read the transport directly).
type Suite struct {
	Transport  transport.Transport
	ClientInfo protocol.Implementation
	Options    Options
}

// Run executes every check in order and returns a Report. A check that
// times out against Options.TestTimeout is recorded as StatusCritical
// rather than aborting the run, unless Options.FailFast is set.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	if s.Options.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Options.TotalTimeout)
		defer cancel()
	}

	report := &Report{RunID: uuid.NewString()}
	c := client.New(s.Transport)

	checks := []func(ctx context.Context, c *client.Client) Result{
		s.checkConnection,
		s.checkHandshake,
		s.checkProtocolCompliance,
		s.checkTransportFeatures,
	}

	for _, check := range checks {
		res := s.runOne(ctx, c, check)
		report.Results = append(report.Results, res)
		if res.Status == StatusCritical && s.Options.FailFast {
			return finalize(report), nil
		}
	}

	if c.State() == client.StateReady {
		report.ServerName = c.ServerInfo().ServerInfo.Name
	}

	capResults := s.runCapabilityChecks(ctx, c)
	report.Results = append(report.Results, capResults...)

	report.Results = append(report.Results, s.runOne(ctx, c, s.checkErrorHandling))

	_ = c.Close(ctx)
	return finalize(report), nil
}

func finalize(report *Report) *Report {
	total := len(report.Results)
	if total == 0 {
		return report
	}
	var passed float64
	for _, r := range report.Results {
		switch r.Status {
		case StatusPass:
			passed += 1
		case StatusInfo, StatusSkipped:
			passed += 1 // neutral outcomes don't count against compliance
		case StatusWarning:
			passed += 0.5
		}
	}
	report.CompliancePercentage = 100 * passed / float64(total)
	return report
}

func (s *Suite) runOne(ctx context.Context, c *client.Client, check func(context.Context, *client.Client) Result) Result {
	testCtx := ctx
	var cancel context.CancelFunc
	if s.Options.TestTimeout > 0 {
		testCtx, cancel = context.WithTimeout(ctx, s.Options.TestTimeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- check(testCtx, c) }()

	select {
	case res := <-done:
		res.Duration = time.Since(start)
		res.Timestamp = start
		return res
	case <-testCtx.Done():
		return Result{
			Status:    StatusCritical,
			Message:   fmt.Sprintf("test timed out after %s", s.Options.TestTimeout),
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// checkConnection is a pre-flight check on the transport's own
// configuration; the actual connection happens as the first step of
// checkHandshake's flow so it isn't established twice.
func (s *Suite) checkConnection(ctx context.Context, c *client.Client) Result {
	res := Result{TestID: "connection.config", TestName: "transport configuration", Category: CategoryConnection}
	info := s.Transport.Info()
	if info.Kind == "" {
		res.Status = StatusCritical
		res.Message = "transport reports no kind"
		return res
	}
	res.Status = StatusPass
	res.Message = fmt.Sprintf("transport kind %s ready to connect", info.Kind)
	return res
}

func (s *Suite) checkHandshake(ctx context.Context, c *client.Client) Result {
	res := Result{TestID: "handshake.initialize", TestName: "initialize handshake", Category: CategoryHandshake}
	result, err := c.Connect(ctx, s.ClientInfo, s.Options.TestTimeout)
	if err != nil {
		res.Status = StatusCritical
		res.Message = err.Error()
		return res
	}
	res.Status = StatusPass
	res.Message = fmt.Sprintf("negotiated protocol %s with %s %s", result.ProtocolVersion, result.ServerInfo.Name, result.ServerInfo.Version)
	res.Details = map[string]any{"protocol_version": result.ProtocolVersion}
	return res
}

func (s *Suite) checkProtocolCompliance(ctx context.Context, c *client.Client) Result {
	res := Result{TestID: "protocol.compliance", TestName: "protocol compliance", Category: CategoryProtocol}
	if c.State() != client.StateReady {
		res.Status = StatusSkipped
		res.Message = "handshake did not complete; skipping"
		return res
	}
	info := c.ServerInfo()
	if info.ServerInfo.Name == "" {
		res.Status = StatusWarning
		res.Message = "server did not report a name in serverInfo"
		return res
	}
	res.Status = StatusPass
	res.Message = "initialize result carries required fields"
	return res
}

func (s *Suite) checkTransportFeatures(ctx context.Context, c *client.Client) Result {
	res := Result{TestID: "transport.features", TestName: "transport feature checks", Category: CategoryTransport}
	info := s.Transport.Info()
	res.Details = map[string]any{"transport_kind": string(info.Kind)}

	switch info.Kind {
	case transport.KindStreamableHTTP:
		sh, ok := s.Transport.(*transport.StreamableHTTP)
		if !ok {
			res.Status = StatusSkipped
			res.Message = "not a concrete StreamableHTTP transport"
			return res
		}
		if !sh.CanResume() {
			res.Status = StatusInfo
			res.Message = "server has not assigned a session/event id yet; resumability unverified"
			return res
		}
		res.Status = StatusPass
		res.Message = "session id and last-event-id present; stream is resumable"
		return res
	default:
		res.Status = StatusInfo
		res.Message = "no transport-specific checks for this binding"
		return res
	}
}

// runCapabilityChecks lists tools/resources/prompts concurrently (each is
// an independent request; a slow or unsupported one shouldn't delay the
// others) and then compiles every tool's input schema.
func (s *Suite) runCapabilityChecks(ctx context.Context, c *client.Client) []Result {
	if c.State() != client.StateReady {
		return []Result{{
			TestID:   "capability.listings",
			TestName: "capability listings",
			Category: CategoryCapability,
			Status:   StatusSkipped,
			Message:  "client not ready",
		}}
	}

	var tools []protocol.Tool
	var resources []protocol.Resource
	var prompts []protocol.Prompt

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tools, err = c.ListTools(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		resources, err = c.ListResources(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prompts, err = c.ListPrompts(gctx)
		return err
	})

	results := make([]Result, 0, 4)
	start := time.Now()
	if err := g.Wait(); err != nil {
		results = append(results, Result{
			TestID: "capability.listings", TestName: "capability listings",
			Category: CategoryCapability, Status: StatusError, Message: err.Error(),
			Duration: time.Since(start), Timestamp: start,
		})
		return results
	}

	results = append(results, Result{
		TestID: "capability.listings", TestName: "capability listings",
		Category: CategoryCapability, Status: StatusPass,
		Message:   fmt.Sprintf("%d tools, %d resources, %d prompts", len(tools), len(resources), len(prompts)),
		Details:   map[string]any{"tools": len(tools), "resources": len(resources), "prompts": len(prompts)},
		Duration:  time.Since(start), Timestamp: start,
	})

	for _, tool := range tools {
		results = append(results, s.checkToolSchema(tool))
	}
	return results
}

func (s *Suite) checkToolSchema(tool protocol.Tool) Result {
	start := time.Now()
	res := Result{
		TestID:    fmt.Sprintf("schema.tool.%s", tool.Name),
		TestName:  fmt.Sprintf("schema compile: %s", tool.Name),
		Category:  CategorySchema,
		Timestamp: start,
	}
	if tool.InputSchema == nil {
		res.Status = StatusInfo
		res.Message = "tool declares no input schema"
		res.Duration = time.Since(start)
		return res
	}
	if _, err := tool.InputSchema.Resolve(nil); err != nil {
		res.Status = StatusError
		res.Message = fmt.Sprintf("schema did not compile: %v", err)
		res.Duration = time.Since(start)
		return res
	}
	res.Status = StatusPass
	res.Message = "schema compiled"
	res.Duration = time.Since(start)
	return res
}

// checkErrorHandling probes the server's handling of malformed requests:
// an unknown method should yield -32601, and a known method called with
// invalid params should yield -32602.
func (s *Suite) checkErrorHandling(ctx context.Context, c *client.Client) Result {
	res := Result{TestID: "error_handling.codes", TestName: "error-handling probes", Category: CategoryErrorHandling}
	if c.State() != client.StateReady {
		res.Status = StatusSkipped
		res.Message = "client not ready"
		return res
	}

	var notes []string

	if _, err := c.SendRequest(ctx, "mcp-probe/nonexistent-method", struct{}{}, 0); err == nil {
		notes = append(notes, "unknown method did not produce an error")
	} else if rpcErr, ok := err.(*protocol.Error); ok {
		if rpcErr.Code != protocol.CodeMethodNotFound {
			notes = append(notes, fmt.Sprintf("unknown method returned code %d, expected -32601", rpcErr.Code))
		}
	}

	if available, err := c.ListTools(ctx); err == nil && len(available) > 0 {
		if _, err := c.CallTool(ctx, available[0].Name, json.RawMessage(`{"__mcp_probe_invalid__": true}`), 0); err != nil {
			if rpcErr, ok := err.(*protocol.Error); ok && rpcErr.Code != protocol.CodeInvalidParams {
				notes = append(notes, fmt.Sprintf("invalid params returned code %d, expected -32602", rpcErr.Code))
			}
		}
	}

	if len(notes) == 0 {
		res.Status = StatusPass
		res.Message = "error codes conform to expectations"
		return res
	}
	res.Status = StatusWarning
	res.Message = fmt.Sprintf("%d deviation(s) observed", len(notes))
	res.Details = map[string]any{"notes": notes}
	return res
}
