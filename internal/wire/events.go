// Package wire defines the JSON frames exchanged on a forum channel. Both the
// channel server and the realtime client decode through these types, so the
// shapes here are the protocol.
package wire

import (
	"encoding/json"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
)

// Frame kinds delivered on a channel.
const (
	KindInsert        = "insert"         // change feed: new message row
	KindUpdate        = "update"         // change feed: pinned/reactions changed
	KindPresenceState = "presence_state" // full online set, authoritative
	KindPeerJoined    = "peer_joined"    // advisory
	KindPeerLeft      = "peer_left"      // advisory
	KindTyping        = "typing"         // ephemeral broadcast, best-effort
)

// Event is the envelope for every frame. Outbound frames are built with a
// concrete payload; inbound frames keep the payload raw until the kind is
// known, so untyped payloads never cross this boundary.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is the outbound counterpart of Event.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Message is the wire form of a message row.
type Message struct {
	ID           string              `json:"id"`
	ForumID      string              `json:"forum_id"`
	AuthorID     string              `json:"author_id"`
	Content      string              `json:"content"`
	Media        []string            `json:"media,omitempty"`
	Pinned       bool                `json:"pinned"`
	ParentID     *string             `json:"parent_id,omitempty"`
	Reactions    map[string][]string `json:"reactions,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	AuthorName   string              `json:"author_name,omitempty"`
	AuthorAvatar string              `json:"author_avatar,omitempty"`
}

func FromDomain(m domain.Message) Message {
	return Message{
		ID:           m.ID,
		ForumID:      m.ForumID,
		AuthorID:     m.AuthorID,
		Content:      m.Content,
		Media:        m.Media,
		Pinned:       m.Pinned,
		ParentID:     m.ParentID,
		Reactions:    m.Reactions,
		CreatedAt:    m.CreatedAt,
		AuthorName:   m.AuthorName,
		AuthorAvatar: m.AuthorAvatar,
	}
}

func (m Message) ToDomain() domain.Message {
	reactions := domain.Reactions(m.Reactions)
	if reactions == nil {
		reactions = domain.Reactions{}
	}
	return domain.Message{
		ID:           m.ID,
		ForumID:      m.ForumID,
		AuthorID:     m.AuthorID,
		Content:      m.Content,
		Media:        m.Media,
		Pinned:       m.Pinned,
		ParentID:     m.ParentID,
		Reactions:    reactions,
		CreatedAt:    m.CreatedAt,
		AuthorName:   m.AuthorName,
		AuthorAvatar: m.AuthorAvatar,
	}
}

// RowPayload carries a change-feed row (insert and update frames).
type RowPayload struct {
	ForumID string  `json:"forum_id"`
	Message Message `json:"message"`
}

// Peer is one entry of the online set.
type Peer struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	OnlineAt    int64  `json:"online_at_unix"`
}

// PresencePayload is the authoritative snapshot of who is online.
type PresencePayload struct {
	ForumID string `json:"forum_id"`
	Peers   []Peer `json:"peers"`
}

// PeerPayload accompanies the advisory peer_joined / peer_left frames.
type PeerPayload struct {
	ForumID string `json:"forum_id"`
	UserID  string `json:"user_id"`
}

// TypingPayload is fire-and-forget: no delivery or ordering guarantee, never
// persisted. Do not put anything state-bearing on it.
type TypingPayload struct {
	ForumID string `json:"forum_id"`
	UserID  string `json:"user_id"`
	Label   string `json:"label,omitempty"`
}
