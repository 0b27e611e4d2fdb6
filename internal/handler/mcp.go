// MCP transport handler using the official MCP Go SDK.
// Exposes settings management and script tag preview as MCP tools.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"plausible-bridge/internal/model"
	"plausible-bridge/internal/provisioning"
	"plausible-bridge/internal/script"
	"plausible-bridge/internal/settings"
)

// === MCP Tool Input/Output Types ===

// GetSettingsInput is the input schema for get_settings. It takes no arguments.
type GetSettingsInput struct{}

// SettingsOutput is returned by get_settings and update_settings. Settings
// holds the stored option document keyed by option name.
type SettingsOutput struct {
	Settings     map[string]any       `json:"settings"`
	Provisioning *provisioning.Report `json:"provisioning,omitempty"`
}

// UpdateSettingsInput is the input schema for update_settings.
type UpdateSettingsInput struct {
	Changes map[string]any `json:"changes" jsonschema:"settings keys to change; omitted keys keep their value"`
}

// ScriptAttributesInput is the input schema for script_attributes.
type ScriptAttributesInput struct {
	SingleContent bool          `json:"single_content,omitempty" jsonschema:"render for a single post, page or product"`
	Author        string        `json:"author,omitempty" jsonschema:"author display name of the content"`
	Terms         []script.Term `json:"terms,omitempty" jsonschema:"taxonomy terms attached to the content"`
}

// ScriptAttributesOutput is returned by script_attributes.
type ScriptAttributesOutput struct {
	Attributes string `json:"attributes"`
	ScriptURL  string `json:"script_url"`
	Filename   string `json:"filename"`
}

// NewMCPServer creates an MCP server with the settings tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "plausible-bridge",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Plausible Analytics bridge. Use these tools to inspect and change " +
				"tracking settings and to preview the tracking script tag.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_settings",
		Description: "Get the current tracking settings. The API token is redacted.",
	}, h.mcpGetSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_settings",
		Description: "Change tracking settings and provision goals, properties and the shared link for the change.",
	}, h.mcpUpdateSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "script_attributes",
		Description: "Preview the tracking script tag attributes and source for a page.",
	}, h.mcpScriptAttributes)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetSettings(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSettingsInput,
) (*mcp.CallToolResult, SettingsOutput, error) {
	s, err := h.store.Get(ctx)
	if err != nil {
		return nil, SettingsOutput{}, h.mcpError(err)
	}
	doc, err := settingsDocument(s.Redacted())
	if err != nil {
		return nil, SettingsOutput{}, h.mcpError(err)
	}
	return nil, SettingsOutput{Settings: doc}, nil
}

func (h *Handler) mcpUpdateSettings(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateSettingsInput,
) (*mcp.CallToolResult, SettingsOutput, error) {
	if len(input.Changes) == 0 {
		return nil, SettingsOutput{}, fmt.Errorf("changes is required")
	}

	patch := make(map[string]json.RawMessage, len(input.Changes))
	for k, v := range input.Changes {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, SettingsOutput{}, fmt.Errorf("changes.%s: %w", k, err)
		}
		patch[k] = raw
	}

	resp, err := h.updateSettings(ctx, patch)
	if err != nil {
		return nil, SettingsOutput{}, h.mcpError(err)
	}
	doc, err := settingsDocument(resp.Settings)
	if err != nil {
		return nil, SettingsOutput{}, h.mcpError(err)
	}
	return nil, SettingsOutput{Settings: doc, Provisioning: resp.Provisioning}, nil
}

func (h *Handler) mcpScriptAttributes(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ScriptAttributesInput,
) (*mcp.CallToolResult, ScriptAttributesOutput, error) {
	s, err := h.store.Get(ctx)
	if err != nil {
		return nil, ScriptAttributesOutput{}, h.mcpError(err)
	}
	if s.DomainName == "" {
		return nil, ScriptAttributesOutput{}, h.mcpError(model.NewValidationError("domain_name", "not configured"))
	}

	rc := script.RequestContext{
		SingleContent: input.SingleContent,
		Author:        input.Author,
		Terms:         input.Terms,
	}
	return nil, ScriptAttributesOutput{
		Attributes: h.scripts.Build(s, rc),
		ScriptURL:  h.scripts.ScriptURL(s),
		Filename:   script.Filename(s),
	}, nil
}

func settingsDocument(s settings.Settings) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// mcpError converts domain errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
