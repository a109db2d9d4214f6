// Package storage is the HTTP client for the external blob store that holds
// uploaded source documents. Objects are addressed by filename; Head resolves
// a filename to a fetchable object URL.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/winsonsd1123/pdfano/observability"
)

// ErrNotFound reports that the store has no object under the given filename.
var ErrNotFound = errors.New("storage: object not found")

const defaultTimeout = 30 * time.Second

// Client talks to the blob store. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(l observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a store client rooted at baseURL. token is sent as a
// bearer credential on every request; empty means unauthenticated.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// headResponse is the store's metadata answer for a named object.
type headResponse struct {
	URL string `json:"url"`
}

// Head resolves filename to the object's download URL. Returns ErrNotFound
// when the store has no such object.
func (c *Client) Head(ctx context.Context, filename string) (string, error) {
	endpoint := c.baseURL + "/objects/" + url.PathEscape(filename)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return "", fmt.Errorf("head %q: %w", filename, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("head %q: %w", filename, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("head %q: unexpected status %d", filename, resp.StatusCode)
	}

	var head headResponse
	if err := json.NewDecoder(resp.Body).Decode(&head); err != nil {
		return "", fmt.Errorf("head %q: decode response: %w", filename, err)
	}
	if head.URL == "" {
		return "", fmt.Errorf("head %q: store returned no url", filename)
	}
	return head.URL, nil
}

// Fetch downloads the object behind objectURL, as returned by Head.
func (c *Client) Fetch(ctx context.Context, objectURL string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, objectURL, nil, "")
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch: %w", ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	c.logger.Debug("object fetched", observability.Int("bytes", len(data)))
	return data, nil
}

// Put uploads data under filename and returns the stored object's URL.
// An existing object with the same name is replaced.
func (c *Client) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	endpoint := c.baseURL + "/objects/" + url.PathEscape(filename)
	resp, err := c.do(ctx, http.MethodPut, endpoint, bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("put %q: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("put %q: unexpected status %d", filename, resp.StatusCode)
	}
	var head headResponse
	if err := json.NewDecoder(resp.Body).Decode(&head); err != nil {
		return "", fmt.Errorf("put %q: decode response: %w", filename, err)
	}
	c.logger.Info("object stored",
		observability.String("filename", filename),
		observability.Int("bytes", len(data)))
	return head.URL, nil
}

// Delete removes the named object. Deleting an absent object returns
// ErrNotFound; callers that want idempotent deletes ignore it.
func (c *Client) Delete(ctx context.Context, filename string) error {
	endpoint := c.baseURL + "/objects/" + url.PathEscape(filename)
	resp, err := c.do(ctx, http.MethodDelete, endpoint, nil, "")
	if err != nil {
		return fmt.Errorf("delete %q: %w", filename, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("delete %q: %w", filename, ErrNotFound)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent:
		return fmt.Errorf("delete %q: unexpected status %d", filename, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}
