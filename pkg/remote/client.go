// Package remote talks to a horizond server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stefanpenner/horizon/pkg/api"
	"github.com/stefanpenner/horizon/pkg/store"
)

// StatusError is a non-2xx response. Problem is set when the server sent an
// RFC 7807 body.
type StatusError struct {
	Method  string
	URL     string
	Status  int
	Problem *api.ProblemDetail
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
	if e.Problem != nil && e.Problem.Detail != "" {
		msg += ": " + e.Problem.Detail
	}
	return msg
}

// Client implements the sync engine's Remote and Resetter over HTTP.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimSuffix(u.String(), "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) goalsURL(cat store.Category) string {
	return c.base + "/api/goals?category=" + url.QueryEscape(string(cat))
}

// Fetch returns a category's list. An empty body, or a 404 carrying a problem
// detail, is an empty list. A bare 404 is an error, since it usually means the
// URL does not point at a horizon server.
func (c *Client) Fetch(ctx context.Context, cat store.Category) ([]store.Goal, error) {
	resp, err := c.do(ctx, http.MethodGet, c.goalsURL(cat), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound && se.Problem != nil {
			return []store.Goal{}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cat, err)
	}
	goals := []store.Goal{}
	if len(bytes.TrimSpace(body)) == 0 {
		return goals, nil
	}
	if err := json.Unmarshal(body, &goals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cat, err)
	}
	if goals == nil {
		goals = []store.Goal{}
	}
	return goals, nil
}

// Save replaces a category's list on the server.
func (c *Client) Save(ctx context.Context, cat store.Category, goals []store.Goal) error {
	if goals == nil {
		goals = []store.Goal{}
	}
	data, err := json.Marshal(api.SaveRequest{Goals: goals})
	if err != nil {
		return fmt.Errorf("encode %s: %w", cat, err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.goalsURL(cat), data)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Reset empties every category on the server.
func (c *Client) Reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, c.base+"/api/reset", nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do sends a request and turns non-2xx responses into *StatusError.
func (c *Client) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	se := &StatusError{Method: method, URL: target, Status: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), api.ProblemContentType) {
		var p api.ProblemDetail
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&p) == nil {
			se.Problem = &p
		}
	}
	return nil, se
}
