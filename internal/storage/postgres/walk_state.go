package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"news_aggregator/internal/domain"
)

type WalkStateStore struct {
	db *sqlx.DB
}

func NewWalkStateStore(db *sqlx.DB) *WalkStateStore {
	return &WalkStateStore{db: db}
}

func (s *WalkStateStore) Get(ctx context.Context, source, fromDate string) (*domain.WalkState, error) {
	var state domain.WalkState
	query := `
		SELECT id, source, from_date, last_page, total_pages, articles_saved,
			status, last_error, updated_at
		FROM walk_state
		WHERE source = $1 AND from_date = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, source, fromDate)
	if errors.Is(err, sql.ErrNoRows) {
		// First page of a new walk
		return &domain.WalkState{
			Source:   source,
			FromDate: fromDate,
			Status:   domain.WalkRunning,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *WalkStateStore) Update(ctx context.Context, state *domain.WalkState) error {
	query := `
		INSERT INTO walk_state (
			source, from_date, last_page, total_pages, articles_saved, status, last_error, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (source, from_date) DO UPDATE SET
			last_page = EXCLUDED.last_page,
			total_pages = EXCLUDED.total_pages,
			articles_saved = EXCLUDED.articles_saved,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			updated_at = NOW()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.Source,
		state.FromDate,
		state.LastPage,
		state.TotalPages,
		state.ArticlesSaved,
		string(state.Status),
		state.LastError,
	)
	return err
}

// ListByStatus returns walks in the given status, most recently updated first.
func (s *WalkStateStore) ListByStatus(ctx context.Context, status domain.WalkStatus) ([]domain.WalkState, error) {
	var states []domain.WalkState
	query := `
		SELECT id, source, from_date, last_page, total_pages, articles_saved,
			status, last_error, updated_at
		FROM walk_state
		WHERE status = $1
		ORDER BY updated_at DESC`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &states, query, string(status)); err != nil {
		return nil, err
	}
	return states, nil
}
