package domain

import "time"

type ForumType string

const (
	ForumAllChat ForumType = "all_chat"
	ForumFanArt  ForumType = "fan_art"
)

// Forum is a scoped communication channel owned by exactly one community.
// Forums are created together with their community and never change afterwards.
type Forum struct {
	ID          string    `db:"id"`
	CommunityID string    `db:"community_id"`
	Type        ForumType `db:"forum_type"`
	CreatedAt   time.Time `db:"created_at"`
}
