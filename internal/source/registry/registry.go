// Package registry wires the concrete adapters into a source.Factory.
package registry

import (
	"fmt"

	"go.uber.org/zap"

	"news_aggregator/internal/config"
	"news_aggregator/internal/source"
	"news_aggregator/internal/source/guardian"
	"news_aggregator/internal/source/newsapi"
	"news_aggregator/internal/source/nytimes"
	"news_aggregator/pkg/httpclient"
)

// New returns a factory holding one constructor per known source. A source
// with no API key configured fails at construction time.
func New(sources map[string]config.SourceConfig, client httpclient.Client, logger *zap.Logger) *source.Factory {
	return source.NewFactory(map[string]source.Constructor{
		newsapi.SourceName: func() (source.Adapter, error) {
			cfg, err := lookup(sources, newsapi.SourceName)
			if err != nil {
				return nil, err
			}
			return newsapi.New(newsapi.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Query: cfg.Query}, client, logger), nil
		},
		guardian.SourceName: func() (source.Adapter, error) {
			cfg, err := lookup(sources, guardian.SourceName)
			if err != nil {
				return nil, err
			}
			return guardian.New(guardian.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey}, client, logger), nil
		},
		nytimes.SourceName: func() (source.Adapter, error) {
			cfg, err := lookup(sources, nytimes.SourceName)
			if err != nil {
				return nil, err
			}
			return nytimes.New(nytimes.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey}, client, logger), nil
		},
	})
}

// NewHTTPClient builds the shared resty client from HTTP config.
func NewHTTPClient(cfg config.HTTPConfig) *httpclient.RestyClient {
	return httpclient.NewRestyClient(httpclient.Options{
		Timeout:          cfg.Timeout,
		UserAgent:        cfg.UserAgent,
		RetryCount:       cfg.Retry.MaxAttempts,
		RetryWaitTime:    cfg.Retry.InitialBackoff,
		RetryMaxWaitTime: cfg.Retry.MaxBackoff,
	})
}

func lookup(sources map[string]config.SourceConfig, name string) (config.SourceConfig, error) {
	cfg, ok := sources[name]
	if !ok || cfg.APIKey == "" {
		return config.SourceConfig{}, fmt.Errorf("source %s: api key is not configured", name)
	}
	return cfg, nil
}
