package domain

import "time"

// Article is the canonical, source-agnostic shape every adapter normalizes to.
// Absent upstream fields are empty strings.
type Article struct {
	Title       string `json:"title" db:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" db:"description"`
	Content     string `json:"content" db:"content"`
	Source      string `json:"source" db:"source" validate:"max=255"`
	Author      string `json:"author" db:"author" validate:"max=255"`
	ImageURL    string `json:"image_url" db:"image_url"`
	ArticleURL  string `json:"article_url" db:"article_url" validate:"required,max=255,absurl"`
	PublishedAt string `json:"published_at" db:"published_at" validate:"required,datetime_any"`
	APISource   string `json:"api_source" db:"api_source" validate:"max=255"`
}

// StoredArticle is an Article row as persisted, with store-managed columns.
type StoredArticle struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Content     string    `db:"content"`
	Source      string    `db:"source"`
	Author      string    `db:"author"`
	ImageURL    string    `db:"image_url"`
	ArticleURL  string    `db:"article_url"`
	PublishedAt time.Time `db:"published_at"`
	APISource   string    `db:"api_source"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// PageResult is the envelope an adapter returns for one fetched page.
// CurrentPage is 1-based. Zero CurrentPage and TotalPages mean the upstream
// response carried no pagination metadata.
type PageResult struct {
	CurrentPage int
	TotalPages  int
	Records     []Article
}

// HasMetadata reports whether the upstream envelope carried pagination data.
func (p *PageResult) HasMetadata() bool {
	return p != nil && p.TotalPages > 0
}

// IsLast reports whether no further page should be requested.
func (p *PageResult) IsLast() bool {
	if !p.HasMetadata() {
		return true
	}
	return p.CurrentPage >= p.TotalPages
}
