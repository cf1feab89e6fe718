package fakeserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"
)

// Serve runs the fake MCP server, reading requests from in and writing responses to out.
// It handles initialize, tools/list, tools/call, resources/list, resources/read,
// prompts/list, prompts/get and notifications/initialized, with configurable delays,
// errors, and crashes.
func Serve(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	reader := bufio.NewReader(in)
	requestCount := 0
	methodAttempts := make(map[string]int) // track attempts per method for FailOnAttempt

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Read JSON-RPC request (NDJSON framing - read until newline)
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req rpcRequest
		if err := json.Unmarshal(bytes.TrimSpace(line), &req); err != nil {
			return err
		}

		requestCount++
		methodAttempts[req.Method]++

		// Check crash conditions
		if cfg.CrashOnNthRequest > 0 && requestCount >= cfg.CrashOnNthRequest {
			os.Exit(cfg.CrashExitCode)
		}
		if cfg.CrashOnMethod != "" && req.Method == cfg.CrashOnMethod {
			os.Exit(cfg.CrashExitCode)
		}

		// Apply delay if configured
		if delay, ok := cfg.Delays[req.Method]; ok {
			time.Sleep(delay)
		}

		// Check for Malformed response mode
		if cfg.Malformed {
			out.Write([]byte("this is not valid json\n"))
			continue
		}

		// Check for FailOnAttempt (for retry testing)
		if failAttempt, ok := cfg.FailOnAttempt[req.Method]; ok {
			if methodAttempts[req.Method] == failAttempt {
				writeErrorResponse(out, req.ID, JSONRPCError{
					Code: -32603, Message: "Simulated failure on attempt",
				}, cfg)
				continue
			}
		}

		// Check for forced error
		if rpcErr, ok := cfg.Errors[req.Method]; ok {
			writeErrorResponse(out, req.ID, rpcErr, cfg)
			continue
		}

		// Handle methods
		switch req.Method {
		case "initialize":
			writeResponse(out, req.ID, InitializeResult{
				ProtocolVersion: "2024-11-05",
				ServerInfo:      ServerInfo{Name: "fake-server", Version: "1.0.0"},
				Capabilities:    Capabilities{Tools: &ToolsCapability{}},
			}, cfg)

		case "tools/list":
			tools := cfg.Tools
			if tools == nil {
				tools = []Tool{}
			}
			writeResponse(out, req.ID, ToolsListResult{Tools: tools}, cfg)

		case "tools/call":
			handleToolCall(out, req, cfg)

		case "resources/list":
			if !cfg.SupportsResources {
				writeErrorResponse(out, req.ID, JSONRPCError{Code: -32601, Message: "Method not found"}, cfg)
				continue
			}
			resources := cfg.Resources
			if resources == nil {
				resources = []Resource{}
			}
			writeResponse(out, req.ID, ResourcesListResult{Resources: resources}, cfg)

		case "resources/read":
			if !cfg.SupportsResources {
				writeErrorResponse(out, req.ID, JSONRPCError{Code: -32601, Message: "Method not found"}, cfg)
				continue
			}
			handleResourceRead(out, req, cfg)

		case "prompts/list":
			if !cfg.SupportsPrompts {
				writeErrorResponse(out, req.ID, JSONRPCError{Code: -32601, Message: "Method not found"}, cfg)
				continue
			}
			prompts := cfg.Prompts
			if prompts == nil {
				prompts = []Prompt{}
			}
			writeResponse(out, req.ID, PromptsListResult{Prompts: prompts}, cfg)

		case "prompts/get":
			if !cfg.SupportsPrompts {
				writeErrorResponse(out, req.ID, JSONRPCError{Code: -32601, Message: "Method not found"}, cfg)
				continue
			}
			handlePromptGet(out, req, cfg)

		case "notifications/initialized":
			// No response needed for notifications

		default:
			writeErrorResponse(out, req.ID, JSONRPCError{
				Code: -32601, Message: "Method not found",
			}, cfg)
		}
	}
}

func handleToolCall(out io.Writer, req rpcRequest, cfg Config) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeErrorResponse(out, req.ID, JSONRPCError{Code: -32602, Message: "invalid params"}, cfg)
		return
	}

	if len(cfg.RawToolResult) > 0 {
		writeResponse(out, req.ID, cfg.RawToolResult, cfg)
		return
	}

	if cfg.ToolHandler != nil {
		content, isError, err := cfg.ToolHandler(params.Name, params.Arguments)
		if err != nil {
			writeErrorResponse(out, req.ID, JSONRPCError{Code: -32603, Message: err.Error()}, cfg)
			return
		}
		writeResponse(out, req.ID, ToolCallResult{Content: content, IsError: isError}, cfg)
		return
	}

	if cfg.EchoToolCalls {
		text := params.Name
		if len(params.Arguments) > 0 {
			text += " " + string(params.Arguments)
		}
		writeResponse(out, req.ID, ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}, cfg)
		return
	}

	writeResponse(out, req.ID, ToolCallResult{Content: []ContentBlock{{Type: "text", Text: "ok"}}}, cfg)
}

func handleResourceRead(out io.Writer, req rpcRequest, cfg Config) {
	var params ResourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeErrorResponse(out, req.ID, JSONRPCError{Code: -32602, Message: "invalid params"}, cfg)
		return
	}
	for _, r := range cfg.Resources {
		if r.URI == params.URI {
			writeResponse(out, req.ID, ResourceReadResult{
				Contents: []ResourceContent{{URI: r.URI, MimeType: r.MimeType, Text: "fake content for " + r.URI}},
			}, cfg)
			return
		}
	}
	writeErrorResponse(out, req.ID, JSONRPCError{Code: -32602, Message: "unknown resource: " + params.URI}, cfg)
}

func handlePromptGet(out io.Writer, req rpcRequest, cfg Config) {
	var params PromptGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeErrorResponse(out, req.ID, JSONRPCError{Code: -32602, Message: "invalid params"}, cfg)
		return
	}
	for _, p := range cfg.Prompts {
		if p.Name == params.Name {
			writeResponse(out, req.ID, PromptGetResult{
				Description: p.Description,
				Messages: []PromptMessage{
					{Role: "user", Content: ContentBlock{Type: "text", Text: "rendered " + p.Name}},
				},
			}, cfg)
			return
		}
	}
	writeErrorResponse(out, req.ID, JSONRPCError{Code: -32602, Message: "unknown prompt: " + params.Name}, cfg)
}
