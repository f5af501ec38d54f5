package ws

import (
	"sort"
	"sync"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"
)

type Conn interface {
	Send(ev wire.Envelope) error
	Close() error
	UserID() string
	ForumID() string
	DisplayName() string
	OnlineSince() time.Time
}

// Hub routes channel frames to every connection subscribed to a forum and
// doubles as the service layer's change-feed publisher. Presence is derived
// from the live connection set only; nothing here is persisted.
type Hub struct {
	mu     sync.RWMutex
	forums map[string]map[Conn]struct{} // forumID -> set of connections
}

func NewHub() *Hub {
	return &Hub{forums: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fs, ok := h.forums[c.ForumID()]
	if !ok {
		fs = make(map[Conn]struct{})
		h.forums[c.ForumID()] = fs
	}
	fs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fs, ok := h.forums[c.ForumID()]; ok {
		delete(fs, c)
		if len(fs) == 0 {
			delete(h.forums, c.ForumID())
		}
	}
}

func (h *Hub) Broadcast(forumID string, ev wire.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if fs, ok := h.forums[forumID]; ok {
		for c := range fs {
			_ = c.Send(ev) // best-effort
		}
	}
}

// BroadcastExcept skips every connection of excludeUserID; a sender's own
// typing signal never echoes back to them.
func (h *Hub) BroadcastExcept(forumID, excludeUserID string, ev wire.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if fs, ok := h.forums[forumID]; ok {
		for c := range fs {
			if c.UserID() == excludeUserID {
				continue
			}
			_ = c.Send(ev)
		}
	}
}

// Peers returns the forum's online set, one entry per user id (a user with
// several tabs collapses to the earliest connection), sorted for stable output.
func (h *Hub) Peers(forumID string) []wire.Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byUser := make(map[string]wire.Peer)
	for c := range h.forums[forumID] {
		p, ok := byUser[c.UserID()]
		if !ok || c.OnlineSince().Unix() < p.OnlineAt {
			byUser[c.UserID()] = wire.Peer{
				UserID:      c.UserID(),
				DisplayName: c.DisplayName(),
				OnlineAt:    c.OnlineSince().Unix(),
			}
		}
	}

	peers := make([]wire.Peer, 0, len(byUser))
	for _, p := range byUser {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].UserID < peers[j].UserID })
	return peers
}

// PublishInsert implements service.EventPublisher.
func (h *Hub) PublishInsert(forumID string, m domain.Message) {
	h.Broadcast(forumID, wire.Envelope{
		Type:    wire.KindInsert,
		Payload: wire.RowPayload{ForumID: forumID, Message: wire.FromDomain(m)},
	})
}

// PublishUpdate implements service.EventPublisher.
func (h *Hub) PublishUpdate(forumID string, m domain.Message) {
	h.Broadcast(forumID, wire.Envelope{
		Type:    wire.KindUpdate,
		Payload: wire.RowPayload{ForumID: forumID, Message: wire.FromDomain(m)},
	})
}
