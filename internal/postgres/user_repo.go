package postgres

import (
	"context"
	"errors"

	"github.com/fanforge/forum-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Lookup(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, display_name, avatar_url FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.DisplayName, &u.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Upsert registers or refreshes a user's display metadata. Called by the
// profile flow; exposed here so event enrichment always has rows to join.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, display_name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = $2, avatar_url = $3
	`, u.ID, u.DisplayName, u.AvatarURL)
	return err
}
