// Package bridge talks to the Zotero write-bridge plugin over loopback HTTP.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the plugin's loopback base URL.
const DefaultEndpoint = "http://127.0.0.1:23119/zotero-mcp/v1"

// DefaultTimeout bounds every bridge request.
const DefaultTimeout = 5 * time.Second

// TokenHeader carries the shared secret.
const TokenHeader = "X-ZMCP-Token"

var (
	// ErrUnavailable means the plugin could not be reached or answered with
	// an error status.
	ErrUnavailable = errors.New("write bridge unavailable")

	// ErrAuth means the plugin rejected the token.
	ErrAuth = errors.New("write bridge authentication failed")
)

// Response is the decoded JSON body. Non-JSON bodies are returned under
// the "raw" key.
type Response map[string]any

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient uses DefaultEndpoint when baseURL is empty.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// TagRequest adds and removes tags on one item.
type TagRequest struct {
	ItemKey string   `json:"itemKey"`
	Add     []string `json:"add"`
	Remove  []string `json:"remove"`
	BatchID string   `json:"batchId,omitempty"`
}

// NoteRequest writes a child note. Mode defaults to "upsert"; Marker
// identifies the note to replace.
type NoteRequest struct {
	ItemKey string `json:"itemKey"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
	Marker  string `json:"marker,omitempty"`
}

func (c *Client) Health(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

// Init registers token with the plugin and reports whether it was accepted.
// Error statuses yield false rather than an error; a body that cannot be
// read is an ErrUnavailable error.
func (c *Client) Init(ctx context.Context, token string) (bool, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/init", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, nil
	}
	data, err := decode(resp)
	if err != nil {
		return false, err
	}
	if ok, isBool := data["ok"].(bool); isBool {
		return ok, nil
	}
	return true, nil
}

func (c *Client) Tag(ctx context.Context, r TagRequest) (Response, error) {
	if r.Add == nil {
		r.Add = []string{}
	}
	if r.Remove == nil {
		r.Remove = []string{}
	}
	return c.do(ctx, http.MethodPost, "/tag", r)
}

func (c *Client) Note(ctx context.Context, r NoteRequest) (Response, error) {
	if r.Mode == "" {
		r.Mode = "upsert"
	}
	return c.do(ctx, http.MethodPost, "/note", r)
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set(TokenHeader, c.Token)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	op := strings.TrimPrefix(path, "/")
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s: token invalid or missing", ErrAuth, op)
	}
	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s error: %d %s", ErrUnavailable, op, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return decode(resp)
}

func decode(resp *http.Response) (Response, error) {
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var out Response
		if err := json.Unmarshal(text, &out); err == nil {
			return out, nil
		}
	}
	return Response{"raw": string(text)}, nil
}
