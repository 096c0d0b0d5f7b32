package httpclient

import "context"

// Response is the part of an HTTP response the source adapters read.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts upstream GET calls so adapters can be tested with fakes.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
