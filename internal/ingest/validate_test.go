package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_aggregator/internal/domain"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(a *domain.Article)
		field  string
		tag    string
	}{
		{name: "valid", mutate: func(*domain.Article) {}},
		{name: "missing title", mutate: func(a *domain.Article) { a.Title = "" }, field: "Title", tag: "required"},
		{name: "blank title", mutate: func(a *domain.Article) { a.Title = "   " }, field: "Title", tag: "notblank"},
		{name: "whitespace title", mutate: func(a *domain.Article) { a.Title = "\t\n" }, field: "Title", tag: "notblank"},
		{name: "long title", mutate: func(a *domain.Article) { a.Title = strings.Repeat("t", 256) }, field: "Title", tag: "max"},
		{name: "long author", mutate: func(a *domain.Article) { a.Author = strings.Repeat("a", 256) }, field: "Author", tag: "max"},
		{name: "long source", mutate: func(a *domain.Article) { a.Source = strings.Repeat("s", 256) }, field: "Source", tag: "max"},
		{name: "long api source", mutate: func(a *domain.Article) { a.APISource = strings.Repeat("x", 256) }, field: "APISource", tag: "max"},
		{name: "missing url", mutate: func(a *domain.Article) { a.ArticleURL = "" }, field: "ArticleURL", tag: "required"},
		{name: "relative url", mutate: func(a *domain.Article) { a.ArticleURL = "/news/1" }, field: "ArticleURL", tag: "absurl"},
		{name: "bare word url", mutate: func(a *domain.Article) { a.ArticleURL = "not-a-url" }, field: "ArticleURL", tag: "absurl"},
		{name: "long url", mutate: func(a *domain.Article) { a.ArticleURL = "https://example.com/" + strings.Repeat("p", 250) }, field: "ArticleURL", tag: "max"},
		{name: "missing published at", mutate: func(a *domain.Article) { a.PublishedAt = "" }, field: "PublishedAt", tag: "required"},
		{name: "garbage published at", mutate: func(a *domain.Article) { a.PublishedAt = "last tuesday" }, field: "PublishedAt", tag: "datetime_any"},
		{name: "iso published at", mutate: func(a *domain.Article) { a.PublishedAt = "2024-11-20T10:00:00Z" }},
		{name: "unconstrained fields", mutate: func(a *domain.Article) {
			a.Description = strings.Repeat("d", 5000)
			a.Content = strings.Repeat("c", 5000)
			a.ImageURL = "not even a url"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := article("https://example.com/a")
			tt.mutate(&a)

			err := v.Validate(&a)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field, tt.tag), verr.Error())
		})
	}
}

func TestFilterBatchKeepsOrderAndRejectsRepeats(t *testing.T) {
	v := NewValidator()

	first := article("https://example.com/1")
	repeat := article("https://example.com/1")
	repeat.Title = "Second copy"
	other := article("https://example.com/2")
	broken := article("https://example.com/3")
	broken.Title = ""

	valid, rejected := v.FilterBatch([]domain.Article{first, broken, repeat, other})

	require.Len(t, valid, 2)
	assert.Equal(t, first, valid[0])
	assert.Equal(t, other, valid[1])

	require.Len(t, rejected, 2)
	assert.Equal(t, broken, rejected[0].Article)
	assert.Equal(t, repeat, rejected[1].Article)

	var verr *ValidationError
	require.ErrorAs(t, rejected[1].Err, &verr)
	assert.True(t, verr.Has("ArticleURL", "unique"))
}

func TestFilterBatchInvalidFirstDoesNotReserveURL(t *testing.T) {
	v := NewValidator()

	broken := article("https://example.com/1")
	broken.PublishedAt = ""
	fixed := article("https://example.com/1")

	valid, rejected := v.FilterBatch([]domain.Article{broken, fixed})

	assert.Equal(t, []domain.Article{fixed}, valid)
	assert.Len(t, rejected, 1)
}

func TestFilterBatchStripsNULBytes(t *testing.T) {
	v := NewValidator()

	dirty := article("https://example.com/1")
	dirty.Content = "before\x00after"
	dirty.Title = "Head\x00line"

	valid, rejected := v.FilterBatch([]domain.Article{dirty})

	require.Empty(t, rejected)
	require.Len(t, valid, 1)
	assert.Equal(t, "beforeafter", valid[0].Content)
	assert.Equal(t, "Headline", valid[0].Title)
	assert.Equal(t, "before\x00after", dirty.Content)
}

func TestFilterBatchTitleOfOnlyNULIsBlank(t *testing.T) {
	v := NewValidator()

	rec := article("https://example.com/1")
	rec.Title = "\x00\x00"

	valid, rejected := v.FilterBatch([]domain.Article{rec})

	assert.Empty(t, valid)
	require.Len(t, rejected, 1)
	var verr *ValidationError
	require.ErrorAs(t, rejected[0].Err, &verr)
	assert.True(t, verr.Has("Title", "required"), verr.Error())
}
