package nytimes

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
	"news_aggregator/pkg/httpclient"
)

const (
	SourceName = "nytimes"

	DefaultBaseURL = "https://api.nytimes.com"
	// PageSize is fixed by the API.
	PageSize = 10

	fieldList = "headline,lead_paragraph,abstract,pub_date,source,byline,multimedia,web_url,print_page"
)

// Config holds New York Times adapter configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Adapter implements source.Adapter for the NYT Article Search API, whose
// pages are 0-based.
type Adapter struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// New creates a New York Times adapter.
func New(cfg Config, client httpclient.Client, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With(zap.String("api_source", SourceName)),
	}
}

func (a *Adapter) Name() string {
	return SourceName
}

// FetchPage requests canonical page `page` (1-based) starting at fromDate
// (YYYY-MM-DD) and translates offset/hits back to 1-based page numbers.
func (a *Adapter) FetchPage(ctx context.Context, page int, fromDate string) (*domain.PageResult, error) {
	var resp APIResponse
	if err := source.GetJSON(ctx, a.client, SourceName, a.pageURL(page-1, fromDate), nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Response.Docs) == 0 {
		return &domain.PageResult{}, nil
	}

	records := make([]domain.Article, 0, len(resp.Response.Docs))
	for _, raw := range source.DecodeRecords[Doc](resp.Response.Docs) {
		records = append(records, a.Normalize(raw))
	}

	meta := resp.Response.Meta
	result := &domain.PageResult{
		CurrentPage: source.TotalPages(meta.Offset, PageSize) + 1,
		TotalPages:  source.TotalPages(meta.Hits, PageSize),
		Records:     records,
	}

	a.logger.Debug("fetched page",
		zap.Int("offset", meta.Offset),
		zap.Int("hits", meta.Hits),
		zap.Int("current_page", result.CurrentPage),
		zap.Int("articles", len(records)),
	)

	return result, nil
}

func (a *Adapter) pageURL(upstreamPage int, fromDate string) string {
	q := url.Values{}
	q.Set("api-key", a.apiKey)
	q.Set("fl", fieldList)
	q.Set("page", strconv.Itoa(upstreamPage))
	if fromDate != "" {
		q.Set("begin_date", beginDate(fromDate))
	}
	return source.BuildURL(a.baseURL+"/svc/search/v2/articlesearch.json", q)
}

// Normalize maps a raw NYT document to the canonical record.
func (a *Adapter) Normalize(raw Doc) domain.Article {
	return domain.Article{
		Title:       raw.Headline.Main,
		Description: raw.LeadParagraph,
		Content:     raw.Abstract,
		Source:      raw.Source,
		Author:      raw.Byline.Original,
		ImageURL:    raw.Multimedia.First(),
		ArticleURL:  raw.WebURL,
		PublishedAt: source.NormalizeTimestamp(raw.PubDate),
		APISource:   SourceName,
	}
}

// beginDate formats fromDate as YYYYMMDD. Unparseable input has its dashes
// stripped and is forwarded as is.
func beginDate(fromDate string) string {
	if t, ok := source.ParseTimestamp(fromDate); ok {
		return t.Format("20060102")
	}
	return strings.ReplaceAll(fromDate, "-", "")
}
