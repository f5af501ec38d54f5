package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"
)

// ErrMalformedEvent marks a frame that cannot be applied: unknown kind,
// unparseable payload or a missing/foreign forum id. Such frames are dropped
// and logged, never delivered to the engine.
var ErrMalformedEvent = errors.New("malformed event")

// Peer is one entry of a forum's online set.
type Peer struct {
	UserID      string
	DisplayName string
	OnlineAt    time.Time
}

// TypingEvent is the ephemeral typing signal: consumed for UI feedback and
// discarded, no state attached.
type TypingEvent struct {
	UserID string
	Label  string
}

// event is the decoded tagged variant handed to the channel run loop.
// Exactly one of the pointer fields is set, selected by kind.
type event struct {
	kind   string
	row    *domain.Message
	peers  []Peer
	peer   *wire.PeerPayload
	typing *TypingEvent
}

// decodeEvent turns a raw frame into a typed event for forumID. Raw payloads
// never reach the reconciliation engine: everything is validated here, at the
// transport boundary.
func decodeEvent(forumID string, data []byte) (*event, error) {
	var ev wire.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformedEvent, err)
	}

	switch ev.Type {
	case wire.KindInsert, wire.KindUpdate:
		var p wire.RowPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: row payload: %v", ErrMalformedEvent, err)
		}
		if p.ForumID == "" || p.Message.ID == "" {
			return nil, fmt.Errorf("%w: row payload missing ids", ErrMalformedEvent)
		}
		if p.ForumID != forumID {
			return nil, fmt.Errorf("%w: row for foreign forum %s", ErrMalformedEvent, p.ForumID)
		}
		m := p.Message.ToDomain()
		return &event{kind: ev.Type, row: &m}, nil

	case wire.KindPresenceState:
		var p wire.PresencePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: presence payload: %v", ErrMalformedEvent, err)
		}
		if p.ForumID != forumID {
			return nil, fmt.Errorf("%w: presence for foreign forum %s", ErrMalformedEvent, p.ForumID)
		}
		peers := make([]Peer, 0, len(p.Peers))
		for _, wp := range p.Peers {
			if wp.UserID == "" {
				return nil, fmt.Errorf("%w: peer missing user id", ErrMalformedEvent)
			}
			peers = append(peers, Peer{
				UserID:      wp.UserID,
				DisplayName: wp.DisplayName,
				OnlineAt:    time.Unix(wp.OnlineAt, 0),
			})
		}
		return &event{kind: ev.Type, peers: peers}, nil

	case wire.KindPeerJoined, wire.KindPeerLeft:
		var p wire.PeerPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: peer payload: %v", ErrMalformedEvent, err)
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%w: peer payload missing user id", ErrMalformedEvent)
		}
		return &event{kind: ev.Type, peer: &p}, nil

	case wire.KindTyping:
		var p wire.TypingPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: typing payload: %v", ErrMalformedEvent, err)
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%w: typing payload missing user id", ErrMalformedEvent)
		}
		return &event{kind: ev.Type, typing: &TypingEvent{UserID: p.UserID, Label: p.Label}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, ev.Type)
	}
}
