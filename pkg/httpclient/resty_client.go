package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options tunes the resty transport shared by all adapters.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RetryCount retries transport failures and 5xx responses.
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// RestyClient adapts resty.Client to the Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a RestyClient configured from opts.
func NewRestyClient(opts Options) *RestyClient {
	c := resty.New()
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		c.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.RetryCount > 0 {
		c.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(opts.RetryWaitTime).
			SetRetryMaxWaitTime(opts.RetryMaxWaitTime).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}
	return &RestyClient{client: c}
}

// Get performs an HTTP GET with the given context, URL and headers.
// Non-2xx responses are returned, not converted to errors.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
