package transport

import (
	"testing"

	"github.com/conikeec/mcp-probe/internal/mcptest"
)

// TestHelperProcess is the fake MCP server entry point, invoked by Stdio
// re-executing this test binary with GO_WANT_HELPER_PROCESS=1.
func TestHelperProcess(t *testing.T) {
	mcptest.RunHelperProcess(t)
}
