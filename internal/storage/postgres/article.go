package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"news_aggregator/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Upsert writes the article keyed by article_url, overwriting every field of
// an existing row. It reports whether a new row was inserted.
func (s *ArticleStore) Upsert(ctx context.Context, article *domain.Article) (bool, error) {
	query := `
		INSERT INTO articles (
			title, description, content, source, author,
			image_url, article_url, published_at, api_source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (article_url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			author = EXCLUDED.author,
			image_url = EXCLUDED.image_url,
			published_at = EXCLUDED.published_at,
			api_source = EXCLUDED.api_source,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		article.Title,
		article.Description,
		article.Content,
		article.Source,
		article.Author,
		article.ImageURL,
		article.ArticleURL,
		article.PublishedAt,
		article.APISource,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// GetByURL returns the stored article or nil when none exists.
func (s *ArticleStore) GetByURL(ctx context.Context, articleURL string) (*domain.StoredArticle, error) {
	query := `
		SELECT id, title, description, content, source, author, image_url,
			article_url, published_at, api_source, created_at, updated_at
		FROM articles
		WHERE article_url = $1`

	var article domain.StoredArticle
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, articleURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// CountBySource returns the number of stored articles ingested from apiSource.
func (s *ArticleStore) CountBySource(ctx context.Context, apiSource string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count,
		"SELECT COUNT(*) FROM articles WHERE api_source = $1", apiSource)
	return count, err
}
