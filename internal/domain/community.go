package domain

import "time"

type Community struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Subscription grants write access to a community's forums while active.
type Subscription struct {
	CommunityID string    `db:"community_id"`
	UserID      string    `db:"user_id"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}
