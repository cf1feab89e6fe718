package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// JsonSchema is the wire representation of a JSON Schema document, as
// carried by Tool.InputSchema and Prompt.Arguments. It round-trips
// arbitrary schema documents and can be resolved into a validator via
// Resolve.
type JsonSchema = jsonschema.Schema

// Implementation describes a client or server endpoint. Fields beyond
// name/version are protocol extensions the spec explicitly allows; they
// are preserved in Metadata rather than rejected.
type Implementation struct {
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Metadata map[string]any `json:"-"`
}

// MarshalJSON flattens Metadata alongside the named fields.
func (i Implementation) MarshalJSON() ([]byte, error) {
	m := map[string]any{"name": i.Name, "version": i.Version}
	for k, v := range i.Metadata {
		if k == "name" || k == "version" {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON captures unknown fields into Metadata.
func (i *Implementation) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if raw, ok := m["name"]; ok {
		if err := json.Unmarshal(raw, &i.Name); err != nil {
			return fmt.Errorf("implementation.name: %w", err)
		}
	}
	if raw, ok := m["version"]; ok {
		if err := json.Unmarshal(raw, &i.Version); err != nil {
			return fmt.Errorf("implementation.version: %w", err)
		}
	}
	delete(m, "name")
	delete(m, "version")
	if len(m) > 0 {
		i.Metadata = make(map[string]any, len(m))
		for k, raw := range m {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("implementation.%s: %w", k, err)
			}
			i.Metadata[k] = v
		}
	}
	return nil
}

// ToolsCapability advertises tool-related server capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability advertises resource-related server capabilities.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability advertises prompt-related server capabilities.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability advertises that the server can emit log notifications.
type LoggingCapability struct{}

// Capabilities lists the optional capability blocks a client or server
// declares. Absent blocks are omitted on the wire (nil, not null).
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
}

// InitializeParams is the params payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the result payload of the initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// Tool describes a server-exposed tool.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *JsonSchema `json:"inputSchema,omitempty"`
}

// Resource describes a server-exposed resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Prompt describes a server-exposed prompt template.
type Prompt struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Arguments   *JsonSchema `json:"arguments,omitempty"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ListPromptsResult is the result of prompts/list.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// ContentKind tags the variant a ToolResult content item carries.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentResource ContentKind = "resource"
)

// ToolResult is a single content item in a tool call response. It is a
// tagged union of Text/Image/Resource; only the fields matching Type are
// populated.
type ToolResult struct {
	Type     ContentKind `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`     // base64, for Type==image
	MimeType string      `json:"mimeType,omitempty"` // for Type==image
	Resource *Resource   `json:"resource,omitempty"` // for Type==resource
}

// NewTextResult builds a Text content item.
func NewTextResult(text string) ToolResult {
	return ToolResult{Type: ContentText, Text: text}
}

// CallToolParams is the params payload of tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResponse is the result payload of tools/call.
type CallToolResponse struct {
	Content []ToolResult `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// ReadResourceParams is the params payload of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResponse is the result payload of resources/read.
type ReadResourceResponse struct {
	Contents []ResourceContent `json:"contents"`
}

// ResourceContent is a single resource content item.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // base64
}

// GetPromptParams is the params payload of prompts/get.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResponse is the result payload of prompts/get.
type GetPromptResponse struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptMessage is a single message in a prompt template's expansion.
type PromptMessage struct {
	Role    string     `json:"role"`
	Content ToolResult `json:"content"`
}
