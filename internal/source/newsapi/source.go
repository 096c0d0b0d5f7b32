package newsapi

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
	"news_aggregator/pkg/httpclient"
)

const (
	SourceName = "newsapi"

	DefaultBaseURL = "https://newsapi.org"
	DefaultQuery   = "news"
	PageSize       = 50

	// removedTitle marks articles NewsAPI no longer serves.
	removedTitle = "[Removed]"
)

// Config holds NewsAPI adapter configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Query   string
}

// Adapter implements source.Adapter for newsapi.org.
type Adapter struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	query   string
	logger  *zap.Logger
}

// New creates a NewsAPI adapter.
func New(cfg Config, client httpclient.Client, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		query:   cfg.Query,
		logger:  logger.With(zap.String("api_source", SourceName)),
	}
}

func (a *Adapter) Name() string {
	return SourceName
}

// FetchPage requests one 1-based page. The API key travels in the X-Api-Key
// header. The page count is derived from totalResults since the API does not
// report it.
func (a *Adapter) FetchPage(ctx context.Context, page int, fromDate string) (*domain.PageResult, error) {
	var resp APIResponse
	headers := map[string]string{"X-Api-Key": a.apiKey}
	if err := source.GetJSON(ctx, a.client, SourceName, a.pageURL(page, fromDate), headers, &resp); err != nil {
		return nil, err
	}

	if len(resp.Articles) == 0 {
		return &domain.PageResult{}, nil
	}

	records := make([]domain.Article, 0, len(resp.Articles))
	for _, raw := range source.DecodeRecords[Article](resp.Articles) {
		if raw.Title == removedTitle {
			continue
		}
		records = append(records, a.Normalize(raw))
	}

	a.logger.Debug("fetched page",
		zap.Int("page", page),
		zap.Int("articles", len(resp.Articles)),
		zap.Int("kept", len(records)),
		zap.Int("total_results", resp.TotalResults),
	)

	return &domain.PageResult{
		CurrentPage: page,
		TotalPages:  source.TotalPages(resp.TotalResults, PageSize),
		Records:     records,
	}, nil
}

func (a *Adapter) pageURL(page int, fromDate string) string {
	q := url.Values{}
	q.Set("q", a.query)
	q.Set("pageSize", strconv.Itoa(PageSize))
	q.Set("page", strconv.Itoa(page))
	if fromDate != "" {
		q.Set("from", fromDate)
	}
	return source.BuildURL(a.baseURL+"/v2/everything", q)
}

// Normalize maps a raw NewsAPI article to the canonical record.
func (a *Adapter) Normalize(raw Article) domain.Article {
	return domain.Article{
		Title:       raw.Title,
		Description: raw.Description,
		Content:     raw.Content,
		Source:      raw.Source.Name,
		Author:      raw.Author,
		ImageURL:    raw.URLToImage,
		ArticleURL:  raw.URL,
		PublishedAt: source.NormalizeTimestamp(raw.PublishedAt),
		APISource:   SourceName,
	}
}
