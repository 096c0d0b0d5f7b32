package ingest

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/source"
)

// Validator checks normalized records against the persistence constraints.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("absurl", absoluteURL)
	_ = v.RegisterValidation("datetime_any", anyTimestamp)
	return &Validator{validate: v}
}

// Validate checks a single record.
func (v *Validator) Validate(article *domain.Article) error {
	err := v.validate.Struct(article)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{ArticleURL: article.ArticleURL}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Rejection pairs a rejected record with its validation error.
type Rejection struct {
	Article domain.Article
	Err     error
}

// FilterBatch validates records in order and splits them into accepted and
// rejected. NUL bytes are removed first since text columns cannot hold them.
// A URL repeated within the batch is rejected after its first occurrence.
func (v *Validator) FilterBatch(records []domain.Article) ([]domain.Article, []Rejection) {
	valid := make([]domain.Article, 0, len(records))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(records))

	for i := range records {
		rec := stripNUL(records[i])

		if err := v.Validate(&rec); err != nil {
			rejected = append(rejected, Rejection{Article: rec, Err: err})
			continue
		}
		if _, dup := seen[rec.ArticleURL]; dup {
			rejected = append(rejected, Rejection{
				Article: rec,
				Err: &ValidationError{
					ArticleURL: rec.ArticleURL,
					Fields:     []FieldError{{Field: "ArticleURL", Tag: "unique"}},
				},
			})
			continue
		}

		seen[rec.ArticleURL] = struct{}{}
		valid = append(valid, rec)
	}

	return valid, rejected
}

func absoluteURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func anyTimestamp(fl validator.FieldLevel) bool {
	_, ok := source.ParseTimestamp(fl.Field().String())
	return ok
}

func stripNUL(a domain.Article) domain.Article {
	for _, f := range []*string{
		&a.Title, &a.Description, &a.Content, &a.Source, &a.Author,
		&a.ImageURL, &a.ArticleURL, &a.PublishedAt, &a.APISource,
	} {
		if strings.IndexByte(*f, 0) >= 0 {
			*f = strings.ReplaceAll(*f, "\x00", "")
		}
	}
	return a
}
