// Package httpx provides a node for reading and writing remote HTTP
// resources.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nertverse/conduct/pkg/api"
)

// DefaultTimeout bounds a request when the step config does not set one.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read into state.
const maxBodyBytes = 10 << 20

// Request implements the "http-request" node. It issues a single HTTP
// request and posts the decoded response to state under "httpResult".
//
// Config:
//
//	url:       request URL (literal or "$." reference), required
//	method:    GET (default), POST, PUT, or DELETE
//	body:      request body, JSON-encoded when present
//	headers:   map of header name to value
//	timeoutMs: per-request timeout in milliseconds (default 30000)
//
// Network failure and timeout are expected failure modes and surface on
// the "error" edge, never as a Go error.
type Request struct {
	client *http.Client
}

// NewRequest creates an http-request node using http.DefaultClient
// semantics. Timeouts are applied per request via context.
func NewRequest() *Request {
	return &Request{client: &http.Client{}}
}

// NewRequestWithClient creates an http-request node backed by the given
// client. Tests use this to stub transport behavior.
func NewRequestWithClient(client *http.Client) *Request {
	return &Request{client: client}
}

func (*Request) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "http-request",
		Name:        "HTTP Request",
		Version:     "1.0.0",
		Description: "Issues an HTTP request and posts the response to state.",
		Inputs:      []string{"url", "method", "body", "headers", "timeoutMs"},
		Outputs:     []string{"httpResult"},
		AIHints: api.AIHints{
			Purpose:       "Reading and writing remote resources",
			WhenToUse:     "When a workflow needs data from, or must notify, an external service.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"url":    "https://api.example.com/items",
				"method": "GET",
			},
			PostToState: []string{"httpResult"},
		},
	}
}

func (n *Request) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	url, _ := api.ResolveRef(ec.State, config["url"]).(string)
	if url == "" {
		return api.FireError("http-request: missing parameter \"url\""), nil
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return api.FireError(fmt.Sprintf("http-request: unsupported method %q", method)), nil
	}

	timeout := DefaultTimeout
	if ms, ok := api.ToNumber(config["timeoutMs"]); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	var body io.Reader
	if raw, present := config["body"]; present {
		encoded, err := json.Marshal(api.ResolveRef(ec.State, raw))
		if err != nil {
			return api.FireError(fmt.Sprintf("http-request: cannot encode body: %v", err)), nil
		}
		body = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return api.FireError(fmt.Sprintf("http-request: invalid request: %v", err)), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rawHeaders, ok := config["headers"].(map[string]any); ok {
		for name, v := range rawHeaders {
			if s, ok := v.(string); ok {
				req.Header.Set(name, s)
			}
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return api.FireError(
				fmt.Sprintf("http-request: request timed out after %s", timeout),
				map[string]any{"timeout": true, "url": url},
			), nil
		}
		return api.FireError(
			fmt.Sprintf("http-request: request failed: %v", err),
			map[string]any{"url": url},
		), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return api.FireError(fmt.Sprintf("http-request: reading response: %v", err)), nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	result := map[string]any{
		"status": resp.StatusCode,
		"body":   decoded,
	}
	ec.State["httpResult"] = result

	if resp.StatusCode >= 400 {
		return api.FireError(
			fmt.Sprintf("http-request: %s %s returned %d", method, url, resp.StatusCode),
			map[string]any{"status": resp.StatusCode, "body": decoded},
		), nil
	}
	return api.FireSuccess(map[string]any{
		"httpResult": result,
		"status":     resp.StatusCode,
	}), nil
}
