package source

import (
	"fmt"
	"strings"
)

// UpstreamError reports a failed call to an upstream news API: a transport
// failure, a non-2xx status or a body that could not be decoded.
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	var sb strings.Builder
	sb.WriteString("failed to fetch articles from ")
	sb.WriteString(e.Source)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Body != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Body)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UnknownSourceError is returned by the factory when no adapter is
// registered under the requested name.
type UnknownSourceError struct {
	Name string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("no adapter registered for source %q", e.Name)
}
