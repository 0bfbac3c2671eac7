package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/n3tuk/maintenance-gate/internal/auth"
	"github.com/n3tuk/maintenance-gate/internal/model"
)

// Endpoint paths on the gate's API server.
const (
	adminStatusPath  = "/api/admin/manutencao"
	refreshCachePath = "/api/admin/manutencao/cache"
	publicStatusPath = "/api/sistema/status"
)

// APIError is a failure reported by the server in its response envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the maintenance endpoints.
type Client interface {
	GetStatus(ctx context.Context) (*model.AdminStatus, error)
	SetStatus(ctx context.Context, update model.StatusUpdate) (string, error)
	RefreshCache(ctx context.Context) (model.Status, error)
	PublicStatus(ctx context.Context) (model.Status, error)
}

// HTTPClient is a Client over HTTP, authenticated with an admin session id.
type HTTPClient struct {
	baseURL string
	session string
	http    *http.Client
}

// NewHTTPClient creates a client for the gate at baseURL.
func NewHTTPClient(baseURL, session string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetStatus reads the stored status.
func (c *HTTPClient) GetStatus(ctx context.Context) (*model.AdminStatus, error) {
	var data model.AdminStatus
	resp := model.StatusResponse{Data: &data}
	if err := c.do(ctx, http.MethodGet, adminStatusPath, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return &data, nil
}

// SetStatus writes a new status and returns the server's confirmation.
func (c *HTTPClient) SetStatus(ctx context.Context, update model.StatusUpdate) (string, error) {
	var resp model.WriteResponse
	if err := c.do(ctx, http.MethodPost, adminStatusPath, update, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &APIError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.Message, nil
}

// RefreshCache forces the server to re-read the status.
func (c *HTTPClient) RefreshCache(ctx context.Context) (model.Status, error) {
	return c.status(ctx, http.MethodPost, refreshCachePath)
}

// PublicStatus reads the cached status visitors see.
func (c *HTTPClient) PublicStatus(ctx context.Context) (model.Status, error) {
	return c.status(ctx, http.MethodGet, publicStatusPath)
}

func (c *HTTPClient) status(ctx context.Context, method, path string) (model.Status, error) {
	var data model.Status
	resp := model.StatusResponse{Data: &data}
	if err := c.do(ctx, method, path, nil, &resp); err != nil {
		return model.Status{}, err
	}
	if !resp.Success {
		return model.Status{}, &APIError{StatusCode: http.StatusOK, Message: resp.Error}
	}
	return data, nil
}

// do sends a request and decodes the JSON envelope into out. Non-2xx
// responses with an envelope become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: c.session})
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var envelope model.WriteResponse
		_ = json.NewDecoder(res.Body).Decode(&envelope)
		return &APIError{StatusCode: res.StatusCode, Message: envelope.Error}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
