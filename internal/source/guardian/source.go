package guardian

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
	"news_aggregator/pkg/httpclient"
)

const (
	SourceName = "guardian"

	DefaultBaseURL = "https://content.guardianapis.com"
	PageSize       = 50
	DefaultWindow  = time.Hour

	showFields = "standfirst,body,publication,byline,thumbnail"
)

// Config holds Guardian adapter configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Adapter implements source.Adapter for the Guardian Content API.
type Adapter struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Guardian adapter.
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
		now:     time.Now,
		logger:  logger.With(zap.String("api_source", SourceName)),
	}
}

func (a *Adapter) Name() string {
	return SourceName
}

// FetchPage requests one page for the window [fromDate, now].
func (a *Adapter) FetchPage(ctx context.Context, page int, fromDate string) (*domain.PageResult, error) {
	return a.FetchWindow(ctx, page, fromDate, a.now().UTC().Format(time.RFC3339))
}

// FetchWindow requests one page for an explicit window. from and to are
// forwarded only when both are valid ISO-8601 date-times; otherwise the last
// hour is requested.
func (a *Adapter) FetchWindow(ctx context.Context, page int, from, to string) (*domain.PageResult, error) {
	var resp APIResponse
	if err := source.GetJSON(ctx, a.client, SourceName, a.pageURL(page, from, to), nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Response.Results) == 0 {
		return &domain.PageResult{}, nil
	}

	records := make([]domain.Article, 0, len(resp.Response.Results))
	for _, raw := range source.DecodeRecords[Result](resp.Response.Results) {
		records = append(records, a.Normalize(raw))
	}

	a.logger.Debug("fetched page",
		zap.Int("page", resp.Response.CurrentPage),
		zap.Int("pages", resp.Response.Pages),
		zap.Int("articles", len(records)),
	)

	return &domain.PageResult{
		CurrentPage: resp.Response.CurrentPage,
		TotalPages:  resp.Response.Pages,
		Records:     records,
	}, nil
}

func (a *Adapter) pageURL(page int, from, to string) string {
	now := a.now().UTC()
	fromDate := now.Add(-DefaultWindow).Format(time.RFC3339)
	toDate := now.Format(time.RFC3339)
	if source.IsValidISO8601(from) && source.IsValidISO8601(to) {
		fromDate, toDate = from, to
	}

	q := url.Values{}
	q.Set("api-key", a.apiKey)
	q.Set("from-date", fromDate)
	q.Set("to-date", toDate)
	q.Set("page", strconv.Itoa(page))
	q.Set("page-size", strconv.Itoa(PageSize))
	q.Set("show-fields", showFields)
	return source.BuildURL(a.baseURL+"/search", q)
}

// Normalize maps a raw Guardian result to the canonical record.
func (a *Adapter) Normalize(raw Result) domain.Article {
	var fields Fields
	if raw.Fields != nil {
		fields = *raw.Fields
	}
	return domain.Article{
		Title:       raw.WebTitle,
		Description: fields.Standfirst,
		Content:     fields.Body,
		Source:      fields.Publication,
		Author:      fields.Byline,
		ImageURL:    fields.Thumbnail,
		ArticleURL:  raw.WebURL,
		PublishedAt: source.NormalizeTimestamp(raw.WebPublicationDate),
		APISource:   SourceName,
	}
}
