package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"news_aggregator/pkg/httpclient"
)

var jsonHeaders = map[string]string{"Accept": "application/json"}

// BuildURL appends the encoded query to base.
func BuildURL(base string, query url.Values) string {
	if len(query) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query.Encode()
}

// GetJSON issues a GET and decodes a 2xx JSON body into out. headers are sent
// in addition to Accept. Every failure is returned as an *UpstreamError tagged
// with sourceName; transport errors never carry the request query, which may
// hold credentials.
func GetJSON(ctx context.Context, client httpclient.Client, sourceName, rawURL string, headers map[string]string, out any) error {
	reqHeaders := jsonHeaders
	if len(headers) > 0 {
		reqHeaders = maps.Clone(jsonHeaders)
		maps.Copy(reqHeaders, headers)
	}

	resp, err := client.Get(ctx, rawURL, reqHeaders)
	if err != nil {
		return &UpstreamError{Source: sourceName, Err: redactURLError(err)}
	}

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &UpstreamError{
			Source:     sourceName,
			StatusCode: resp.StatusCode(),
			Body:       responseSnippet(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{
			Source:     sourceName,
			StatusCode: resp.StatusCode(),
			Body:       responseSnippet(body),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// redactedError replaces the message of a transport error whose URL was
// stripped of its query. Unwrap skips the *url.Error so the original URL
// cannot leak through the chain.
type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	redacted := redactURL(uerr.URL)
	if redacted == uerr.URL {
		return err
	}
	return &redactedError{
		msg:   strings.ReplaceAll(err.Error(), uerr.URL, redacted),
		cause: uerr.Err,
	}
}

// redactURL drops the query string and fragment of rawURL.
func redactURL(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// DecodeRecords decodes each raw item into a T on its own. A field whose JSON
// type does not match T is left at its zero value; the rest of the item and
// its siblings still decode.
func DecodeRecords[T any](items []json.RawMessage) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var rec T
		// Unmarshal fills every field it can before reporting a type mismatch.
		_ = json.Unmarshal(item, &rec)
		out = append(out, rec)
	}
	return out
}

// TotalPages returns ceil(total / pageSize), or 0 when either is not positive.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
