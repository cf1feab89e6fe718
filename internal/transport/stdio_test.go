package transport

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/conikeec/mcp-probe/internal/mcptest"
	"github.com/conikeec/mcp-probe/internal/protocol"
)

func fakeStdioConfig(t *testing.T, cfg mcptest.FakeServerConfig) StdioConfig {
	t.Helper()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal fake server config: %v", err)
	}
	return StdioConfig{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env: []string{
			"GO_WANT_HELPER_PROCESS=1",
			"FAKE_MCP_CFG=" + string(cfgJSON),
		},
		Timeout: 5 * time.Second,
	}
}

func TestStdio_ConnectAndInitialize(t *testing.T) {
	tr := NewStdio(fakeStdioConfig(t, mcptest.DefaultConfig()))

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect(ctx)

	if !tr.IsConnected() {
		t.Fatal("expected IsConnected to be true after Connect")
	}

	req, err := protocol.NewRequest(protocol.NewNumberID(1), "initialize", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := tr.SendRequest(ctx, req, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error response: %v", resp.Error)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ServerInfo.Name != "fake-server" {
		t.Errorf("ServerInfo.Name = %q, want fake-server", result.ServerInfo.Name)
	}
}

func TestStdio_MethodNotFound(t *testing.T) {
	tr := NewStdio(fakeStdioConfig(t, mcptest.EmptyToolsConfig()))

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect(ctx)

	req, err := protocol.NewRequest(protocol.NewNumberID(1), "resources/list", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := tr.SendRequest(ctx, req, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("expected an error response for an unhandled method")
	}
	if resp.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, protocol.CodeMethodNotFound)
	}
}

func TestStdio_SendRequestAfterDisconnect(t *testing.T) {
	tr := NewStdio(fakeStdioConfig(t, mcptest.DefaultConfig()))

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tr.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	req, err := protocol.NewRequest(protocol.NewNumberID(1), "initialize", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := tr.SendRequest(ctx, req, time.Second); err == nil {
		t.Fatal("expected an error sending a request after Disconnect")
	}
}

func TestStdio_Timeout(t *testing.T) {
	tr := NewStdio(fakeStdioConfig(t, mcptest.SlowInitConfig(200*time.Millisecond)))

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Disconnect(ctx)

	req, err := protocol.NewRequest(protocol.NewNumberID(1), "initialize", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	_, err = tr.SendRequest(ctx, req, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Errorf("expected a *TimeoutError, got %T: %v", err, err)
	}
}
