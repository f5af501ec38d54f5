package postgres

import (
	"context"
	"errors"

	"github.com/fanforge/forum-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ForumRepository struct {
	db *pgxpool.Pool
}

func NewForumRepository(db *pgxpool.Pool) *ForumRepository {
	return &ForumRepository{db: db}
}

func (r *ForumRepository) Get(ctx context.Context, id string) (*domain.Forum, error) {
	var f domain.Forum
	query := `SELECT id, community_id, forum_type, created_at FROM forums WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&f.ID, &f.CommunityID, &f.Type, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrForumNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *ForumRepository) ListByCommunity(ctx context.Context, communityID string) ([]domain.Forum, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, community_id, forum_type, created_at FROM forums WHERE community_id=$1 ORDER BY created_at ASC`,
		communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Forum
	for rows.Next() {
		var f domain.Forum
		if err := rows.Scan(&f.ID, &f.CommunityID, &f.Type, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}
