package postgres

import (
	"context"
	"errors"

	"github.com/fanforge/forum-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommunityRepository struct {
	db *pgxpool.Pool
}

func NewCommunityRepository(db *pgxpool.Pool) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// Create inserts the community together with its forums in one transaction,
// so a half-provisioned community is never observable.
func (r *CommunityRepository) Create(ctx context.Context, c *domain.Community, types []domain.ForumType) ([]domain.Forum, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO communities (owner_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, c.OwnerID, c.Name).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	forums := make([]domain.Forum, 0, len(types))
	for _, ft := range types {
		var f domain.Forum
		err = tx.QueryRow(ctx, `
			INSERT INTO forums (community_id, forum_type)
			VALUES ($1, $2)
			RETURNING id, community_id, forum_type, created_at
		`, c.ID, ft).Scan(&f.ID, &f.CommunityID, &f.Type, &f.CreatedAt)
		if err != nil {
			return nil, err
		}
		forums = append(forums, f)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return forums, nil
}

func (r *CommunityRepository) Get(ctx context.Context, id string) (*domain.Community, error) {
	var c domain.Community
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, name, created_at FROM communities WHERE id=$1`, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommunityNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CanPost reports whether userID may write to the forum: community owners
// always may, everyone else needs an active subscription.
func (r *CommunityRepository) CanPost(ctx context.Context, forumID, userID string) (bool, error) {
	var ownerID string
	var subscribed bool
	err := r.db.QueryRow(ctx, `
		SELECT c.owner_id,
		       EXISTS (
		           SELECT 1 FROM subscriptions s
		           WHERE s.community_id = c.id AND s.user_id = $2 AND s.active
		       )
		FROM forums f
		JOIN communities c ON c.id = f.community_id
		WHERE f.id = $1
	`, forumID, userID).Scan(&ownerID, &subscribed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrForumNotFound
		}
		return false, err
	}
	return ownerID == userID || subscribed, nil
}

// OwnsForum reports whether userID owns the community the forum belongs to.
func (r *CommunityRepository) OwnsForum(ctx context.Context, forumID, userID string) (bool, error) {
	var ownerID string
	err := r.db.QueryRow(ctx, `
		SELECT c.owner_id
		FROM forums f
		JOIN communities c ON c.id = f.community_id
		WHERE f.id = $1
	`, forumID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrForumNotFound
		}
		return false, err
	}
	return ownerID == userID, nil
}

// Subscribe upserts an active subscription. Billing is out of scope here;
// this is the hook the payment flow calls after a successful charge.
func (r *CommunityRepository) Subscribe(ctx context.Context, communityID, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (community_id, user_id, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (community_id, user_id) DO UPDATE SET active = TRUE
	`, communityID, userID)
	return err
}
