package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type fakeForums struct{ known map[string]bool }

func (f fakeForums) GetForum(ctx context.Context, id string) (*domain.Forum, error) {
	if !f.known[id] {
		return nil, domain.ErrForumNotFound
	}
	return &domain.Forum{ID: id, Type: domain.ForumAllChat}, nil
}

type fakeUsers struct{}

func (fakeUsers) Lookup(ctx context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id, DisplayName: "name-" + id}, nil
}

type fakeTokens struct{ users map[string]string }

func (t fakeTokens) Verify(token string) (string, error) {
	if id, ok := t.users[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func newWSTestServer(t *testing.T) (*httptest.Server, *Server) {
	srv := NewServer(
		NewHub(),
		fakeForums{known: map[string]bool{"f1": true}},
		fakeUsers{},
		fakeTokens{users: map[string]string{"tok-a": "alice", "tok-b": "bob"}},
	)

	r := chi.NewRouter()
	r.Get("/ws/forums/{id}", srv.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, srv
}

func dialWS(t *testing.T, ts *httptest.Server, forumID, token string) *websocket.Conn {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/forums/" + forumID + "?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wire.Event {
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev wire.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return ev
}

// readUntil skips frames until one with the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) wire.Event {
	for i := 0; i < 16; i++ {
		ev := readFrame(t, conn)
		if ev.Type == kind {
			return ev
		}
	}
	t.Fatalf("frame %q never arrived", kind)
	return wire.Event{}
}

func TestHandleWS_RejectsBadCredentials(t *testing.T) {
	ts, _ := newWSTestServer(t)

	cases := []struct {
		name string
		path string
		want int
	}{
		{"missing token", "/ws/forums/f1", http.StatusUnauthorized},
		{"invalid token", "/ws/forums/f1?access_token=forged", http.StatusUnauthorized},
		{"unknown forum", "/ws/forums/ghost?access_token=tok-a", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tc.path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestHandleWS_JoinBroadcastsPresence(t *testing.T) {
	ts, _ := newWSTestServer(t)

	a := dialWS(t, ts, "f1", "tok-a")
	// own join: peer_joined then the authoritative set
	ev := readUntil(t, a, wire.KindPresenceState)
	var p wire.PresencePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(p.Peers) != 1 || p.Peers[0].UserID != "alice" {
		t.Fatalf("initial set = %+v", p.Peers)
	}
	if p.Peers[0].DisplayName != "name-alice" {
		t.Fatalf("display name not resolved: %+v", p.Peers[0])
	}

	dialWS(t, ts, "f1", "tok-b")

	joined := readUntil(t, a, wire.KindPeerJoined)
	var jp wire.PeerPayload
	_ = json.Unmarshal(joined.Payload, &jp)
	if jp.UserID != "bob" {
		t.Fatalf("peer_joined for %q", jp.UserID)
	}

	ev = readUntil(t, a, wire.KindPresenceState)
	_ = json.Unmarshal(ev.Payload, &p)
	if len(p.Peers) != 2 {
		t.Fatalf("set after second join = %+v", p.Peers)
	}
}

func TestHandleWS_LeaveBroadcastsPresence(t *testing.T) {
	ts, _ := newWSTestServer(t)

	a := dialWS(t, ts, "f1", "tok-a")
	b := dialWS(t, ts, "f1", "tok-b")
	readUntil(t, a, wire.KindPeerJoined) // bob arrived

	_ = b.Close()

	left := readUntil(t, a, wire.KindPeerLeft)
	var lp wire.PeerPayload
	_ = json.Unmarshal(left.Payload, &lp)
	if lp.UserID != "bob" {
		t.Fatalf("peer_left for %q", lp.UserID)
	}

	ev := readUntil(t, a, wire.KindPresenceState)
	var p wire.PresencePayload
	_ = json.Unmarshal(ev.Payload, &p)
	if len(p.Peers) != 1 || p.Peers[0].UserID != "alice" {
		t.Fatalf("set after leave = %+v", p.Peers)
	}
}

func TestHandleWS_TypingRelayUsesConnectionIdentity(t *testing.T) {
	ts, _ := newWSTestServer(t)

	a := dialWS(t, ts, "f1", "tok-a")
	b := dialWS(t, ts, "f1", "tok-b")
	readUntil(t, a, wire.KindPeerJoined)

	// the payload claims to be someone else; the relay must not believe it
	err := a.WriteJSON(wire.Envelope{
		Type:    wire.KindTyping,
		Payload: wire.TypingPayload{ForumID: "f1", UserID: "mallory", Label: "Mallory"},
	})
	if err != nil {
		t.Fatalf("write typing: %v", err)
	}

	ev := readUntil(t, b, wire.KindTyping)
	var tp wire.TypingPayload
	if err := json.Unmarshal(ev.Payload, &tp); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if tp.UserID != "alice" || tp.Label != "name-alice" {
		t.Fatalf("relay trusted the payload identity: %+v", tp)
	}
}

func TestHandleWS_TypingNotEchoedToSender(t *testing.T) {
	ts, _ := newWSTestServer(t)

	a := dialWS(t, ts, "f1", "tok-a")
	readUntil(t, a, wire.KindPresenceState)

	if err := a.WriteJSON(wire.Envelope{Type: wire.KindTyping, Payload: wire.TypingPayload{ForumID: "f1"}}); err != nil {
		t.Fatalf("write typing: %v", err)
	}

	a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var ev wire.Event
	for {
		if err := a.ReadJSON(&ev); err != nil {
			return // timed out with no echo, as it should
		}
		if ev.Type == wire.KindTyping {
			t.Fatalf("typing echoed back to the sender")
		}
	}
}
