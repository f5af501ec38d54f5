package http

import (
	"time"

	"github.com/fanforge/forum-service/internal/wire"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateCommunityRequest struct {
	Name string `json:"name"`
}

type CommunityResponse struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
	Forums    []ForumItem `json:"forums"`
}

type ForumItem struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Type        string    `json:"forum_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type PostMessageRequest struct {
	Content  string   `json:"content"`
	ParentID *string  `json:"parent_id,omitempty"`
	Media    []string `json:"media,omitempty"`
}

type MessagesResponse struct {
	Items      []wire.Message `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

type SetPinRequest struct {
	Pinned bool `json:"pinned"`
}

type UpsertUserRequest struct {
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}
