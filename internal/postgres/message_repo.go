package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fanforge/forum-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, forum_id, author_id, content, media, pinned, parent_id, reactions, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m            domain.Message
		reactionsRaw []byte
	)
	if err := row.Scan(&m.ID, &m.ForumID, &m.AuthorID, &m.Content, &m.Media,
		&m.Pinned, &m.ParentID, &reactionsRaw, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Reactions = domain.Reactions{}
	if len(reactionsRaw) > 0 {
		if err := json.Unmarshal(reactionsRaw, &m.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions: %w", err)
		}
	}
	return &m, nil
}

// Create inserts the message row. A parent reference is validated inside the
// same transaction: the parent must exist and belong to the same forum.
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if m.ParentID != nil {
		var parentForum string
		err := tx.QueryRow(ctx, `SELECT forum_id FROM messages WHERE id=$1`, *m.ParentID).Scan(&parentForum)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrMessageNotFound
			}
			return err
		}
		if parentForum != m.ForumID {
			return domain.ErrParentMismatch
		}
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Media == nil {
		m.Media = []string{}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, forum_id, author_id, content, media, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, m.ID, m.ForumID, m.AuthorID, m.Content, m.Media, m.ParentID).Scan(&m.CreatedAt)
	if err != nil {
		return err
	}
	m.Reactions = domain.Reactions{}

	return tx.Commit(ctx)
}

func (r *MessageRepository) Get(ctx context.Context, forumID, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE forum_id=$1 AND id=$2`, forumID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// List returns a newest-first page, cursor over (created_at, id).
// Replies are returned interleaved with top-level messages; the client
// partitions the page when it rebuilds the thread tree.
func (r *MessageRepository) List(ctx context.Context, forumID, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const baseQuery = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE forum_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, baseQuery, forumID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// ToggleReaction flips userID's presence under emoji. The row is locked for
// the read-modify-write so concurrent reactors never erase each other; the
// returned row carries the authoritative mapping.
func (r *MessageRepository) ToggleReaction(ctx context.Context, forumID, id, userID, emoji string) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	m, err := scanMessage(tx.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE forum_id=$1 AND id=$2 FOR UPDATE`, forumID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}

	m.Reactions.Toggle(emoji, userID)
	raw, err := json.Marshal(m.Reactions)
	if err != nil {
		return nil, fmt.Errorf("encode reactions: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE messages SET reactions=$1 WHERE id=$2`, raw, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// SetPinned updates the pinned flag and returns the full row.
func (r *MessageRepository) SetPinned(ctx context.Context, forumID, id string, pinned bool) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
		UPDATE messages SET pinned=$1
		WHERE forum_id=$2 AND id=$3
		RETURNING `+messageColumns, pinned, forumID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}
