package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type ForumSvc interface {
	GetForum(ctx context.Context, id string) (*domain.Forum, error)
}

type UserSvc interface {
	Lookup(ctx context.Context, id string) (*domain.User, error)
}

type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// Server upgrades one connection per (user, forum) channel. Subscribing joins
// the presence group; the authoritative online set is re-broadcast to the
// whole forum on every membership change, with advisory peer_joined /
// peer_left alongside. The only inbound frame kind is typing.
type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	forumSvc ForumSvc
	userSvc  UserSvc
	tokens   TokenVerifier

	pingEvery time.Duration
}

func NewServer(hub *Hub, forumSvc ForumSvc, userSvc UserSvc, tokens TokenVerifier) *Server {
	return &Server{
		hub:      hub,
		forumSvc: forumSvc,
		userSvc:  userSvc,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// SetPingInterval overrides the keepalive interval (read deadlines follow).
func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

// WS endpoint: GET /ws/forums/{id}?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	accessToken := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	userID, err := s.tokens.Verify(accessToken)
	if err != nil {
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}

	forumID := chi.URLParam(r, "id")
	if forumID == "" {
		http.Error(w, "missing forum id", http.StatusBadRequest)
		return
	}
	if _, err := s.forumSvc.GetForum(r.Context(), forumID); err != nil {
		if errors.Is(err, domain.ErrForumNotFound) {
			http.Error(w, "forum not found", http.StatusNotFound)
			return
		}
		slog.Error("ws forum lookup failed", "forum", forumID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	displayName := s.displayName(r.Context(), userID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, forumID, userID, displayName)
	s.hub.Add(c)

	s.hub.Broadcast(forumID, wire.Envelope{
		Type:    wire.KindPeerJoined,
		Payload: wire.PeerPayload{ForumID: forumID, UserID: userID},
	})
	s.broadcastPresence(forumID)

	go s.writeLoop(r.Context(), c)
	s.readLoop(c)

	s.hub.Remove(c)

	s.hub.Broadcast(forumID, wire.Envelope{
		Type:    wire.KindPeerLeft,
		Payload: wire.PeerPayload{ForumID: forumID, UserID: userID},
	})
	s.broadcastPresence(forumID)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "forum", forumID, "user", userID, "err", err)
	}
}

// displayName resolves the user for presence/typing labels. Unknown users get
// a placeholder, never an error: enrichment must not block channel setup.
func (s *Server) displayName(ctx context.Context, userID string) string {
	u, err := s.userSvc.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			slog.Warn("ws user lookup failed", "user", userID, "err", err)
		}
		return placeholderName(userID)
	}
	return u.DisplayName
}

func placeholderName(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "member-" + short
}

func (s *Server) broadcastPresence(forumID string) {
	s.hub.Broadcast(forumID, wire.Envelope{
		Type: wire.KindPresenceState,
		Payload: wire.PresencePayload{
			ForumID: forumID,
			Peers:   s.hub.Peers(forumID),
		},
	})
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var ev wire.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case wire.KindTyping:
			// loss-tolerant relay: sender identity is taken from the
			// connection, never from the payload
			s.hub.BroadcastExcept(c.forumID, c.userID, wire.Envelope{
				Type: wire.KindTyping,
				Payload: wire.TypingPayload{
					ForumID: c.forumID,
					UserID:  c.userID,
					Label:   c.displayName,
				},
			})
		default:
			// content mutations go through the REST surface only
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn        *websocket.Conn
	forumID     string
	userID      string
	displayName string
	onlineSince time.Time
	sendMu      chan struct{}
	closed      chan struct{}
}

func newWsConn(c *websocket.Conn, forumID, userID, displayName string) *wsConn {
	return &wsConn{
		conn:        c,
		forumID:     forumID,
		userID:      userID,
		displayName: displayName,
		onlineSince: time.Now(),
		sendMu:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
}

func (c *wsConn) Send(ev wire.Envelope) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() string         { return c.userID }
func (c *wsConn) ForumID() string        { return c.forumID }
func (c *wsConn) DisplayName() string    { return c.displayName }
func (c *wsConn) OnlineSince() time.Time { return c.onlineSince }
