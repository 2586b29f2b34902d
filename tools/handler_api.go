package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lyzr/orchestrator/cmd/http-worker/security"
)

// APIHandler implements the `api` tool type: an HTTP client with auth
// modes {none, Bearer, Basic, ApiKey header, custom}, default headers
// merged in, JSON body by default. Built around a context-aware request
// builder in the style of common/clients/http.go. Every outbound URL is
// run through the same SSRF/protocol/path validator the http-worker
// trigger path uses before an agent-authored `api://` node can reach the
// network.
type APIHandler struct{}

var apiURLValidator = security.NewURLValidator()

func (APIHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodPost
	}
	url := handle.BaseURL
	if p, _ := args["path"].(string); p != "" {
		url += p
	} else {
		url += "/" + spec.Code
	}
	if err := apiURLValidator.Validate(url); err != nil {
		return nil, fmt.Errorf("tools: api url %q rejected: %w", url, err)
	}

	var body io.Reader
	if payload, ok := args["body"]; ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("tools: api marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("tools: api build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, handle)

	if headers, ok := args["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := handle.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &TimeoutError{URI: url}
		default:
			return nil, fmt.Errorf("tools: api request to %s: %w", url, err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tools: api read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URI: url}
	}

	var out interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			out = string(raw)
		}
	}
	return out, nil
}

func applyAuth(req *http.Request, handle *ServiceHandle) {
	switch handle.AuthMode {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+handle.AuthValue)
	case "basic":
		req.Header.Set("Authorization", "Basic "+handle.AuthValue)
	case "apikey":
		req.Header.Set("X-Api-Key", handle.AuthValue)
	case "custom", "none", "":
		// custom auth is applied by the caller via args["headers"]; none is a no-op.
	}
}
