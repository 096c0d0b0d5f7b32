// Package sourcetest provides an in-memory httpclient.Client for adapter tests.
package sourcetest

import (
	"context"
	"net/url"
	"sync"

	"news_aggregator/pkg/httpclient"
)

// Response is a canned upstream reply.
type Response struct {
	Status int
	Body   string
	Err    error
}

type response struct {
	status int
	body   []byte
}

func (r response) Body() []byte    { return r.body }
func (r response) StatusCode() int { return r.status }

// Client replays Responses in order (repeating the last one) and records
// every requested URL.
type Client struct {
	mu        sync.Mutex
	responses []Response
	requests  []string
	headers   []map[string]string
}

// NewClient returns a Client that answers with the given responses.
func NewClient(responses ...Response) *Client {
	return &Client{responses: responses}
}

// JSON is shorthand for a single 200 response with body.
func JSON(body string) *Client {
	return NewClient(Response{Status: 200, Body: body})
}

func (c *Client) Get(_ context.Context, rawURL string, headers map[string]string) (httpclient.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := len(c.requests)
	c.requests = append(c.requests, rawURL)
	c.headers = append(c.headers, headers)

	if len(c.responses) == 0 {
		return response{status: 200, body: []byte(`{}`)}, nil
	}
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	r := c.responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	status := r.Status
	if status == 0 {
		status = 200
	}
	return response{status: status, body: []byte(r.Body)}, nil
}

// Requests returns the URLs requested so far.
func (c *Client) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

// LastQuery parses the query string of the most recent request.
func (c *Client) LastQuery() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	u, err := url.Parse(c.requests[len(c.requests)-1])
	if err != nil {
		return nil
	}
	return u.Query()
}

// LastHeaders returns the headers of the most recent request.
func (c *Client) LastHeaders() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.headers) == 0 {
		return nil
	}
	return c.headers[len(c.headers)-1]
}
