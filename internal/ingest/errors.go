package ingest

import (
	"errors"
	"fmt"
	"strings"

	"news_aggregator/internal/source"
)

// ErrWalkInProgress is returned when another invocation holds the walk lock
// of the same source.
var ErrWalkInProgress = errors.New("ingestion walk already in progress")

// ConfigurationError reports a missing or invalid source, page or date. It is
// raised before any network call.
type ConfigurationError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid ingestion request for source %q: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FieldError is one failed constraint of a record.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", f.Field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed %s", f.Field, f.Tag)
}

// ValidationError reports a record rejected before persistence.
type ValidationError struct {
	ArticleURL string
	Fields     []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid article %q: %s", e.ArticleURL, strings.Join(parts, "; "))
}

// Has reports whether field failed the given tag.
func (e *ValidationError) Has(field, tag string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Tag == tag {
			return true
		}
	}
	return false
}

// IsConfigurationError reports whether err is a configuration failure,
// including a factory miss.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	var unknown *source.UnknownSourceError
	return errors.As(err, &cfgErr) || errors.As(err, &unknown)
}

// IsUpstreamError reports whether err originates from an upstream API.
func IsUpstreamError(err error) bool {
	var upstream *source.UpstreamError
	return errors.As(err, &upstream)
}
