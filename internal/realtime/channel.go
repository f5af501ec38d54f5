package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"

	"github.com/gorilla/websocket"
)

// Status of a channel, observable through Status() and OnStatus.
type Status int

const (
	StatusClosed Status = iota
	StatusOpening
	StatusSubscribed
	StatusDisconnected
	StatusResubscribing
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpening:
		return "opening"
	case StatusSubscribed:
		return "subscribed"
	case StatusDisconnected:
		return "disconnected"
	case StatusResubscribing:
		return "resubscribing"
	default:
		return "unknown"
	}
}

// Handlers are the consumer's view of a channel. All handlers are invoked
// from the channel's run loop, one at a time; a handler must not call back
// into the channel's blocking methods.
type Handlers struct {
	OnInsert     func(m domain.Message)
	OnUpdate     func(m domain.Message) // reconciled row after a feed update (pin/reactions)
	OnPinned     func(m domain.Message) // fires once per false→true pin transition
	OnPresence   func(peers []Peer)     // full authoritative online set
	OnPeerJoined func(userID string)    // advisory; the set changes via OnPresence
	OnPeerLeft   func(userID string)    // advisory
	OnTyping     func(ev TypingEvent)
	OnStatus     func(s Status)
}

// Channel binds one forum's change feed, presence group and broadcast bus to
// one consumer view. Lifecycle:
//
//	Closed → Opening → Subscribed → (Disconnected → Resubscribing)* → Closed
//
// Opening attaches the socket before the initial history fetch, so the
// narrow fetch/subscribe race resolves to duplicate delivery, which the
// engine's merge-by-id absorbs. On disconnect exactly one immediate
// resubscribe is attempted; after that the channel stays Disconnected and
// the consumer decides. Close is deterministic: socket, presence and every
// pending result are discarded, and the forum slot is released for a fresh
// Open.
type Channel struct {
	forumID string
	client  *Client
	log     *slog.Logger

	handlers  Handlers
	store     *StoreClient
	users     *cachedDirectory
	engine    *Engine
	presence  *presenceTracker
	pageLimit int

	ctx    context.Context
	cancel context.CancelFunc
	events chan inbound
	calls  chan func()
	done   chan struct{}

	gen  int // connection generation; stale readers are ignored
	conn *clientConn

	mu        sync.Mutex
	status    Status
	closeOnce sync.Once
}

type inbound struct {
	ev  *event
	err error
	gen int
}

func newChannel(c *Client, forumID string, h Handlers) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		forumID:   forumID,
		client:    c,
		log:       c.log.With("forum", forumID),
		handlers:  h,
		store:     c.store,
		users:     c.users,
		engine:    NewEngine(forumID),
		presence:  newPresenceTracker(),
		pageLimit: c.opts.PageLimit,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan inbound, 64),
		calls:     make(chan func()),
		done:      make(chan struct{}),
		status:    StatusOpening,
	}
	if ch.handlers.OnPinned != nil {
		ch.engine.SetPinHandler(ch.handlers.OnPinned)
	}
	if c.opts.OrphanBuffer > 0 {
		ch.engine.SetOrphanCap(c.opts.OrphanBuffer)
	}
	return ch
}

// open dials, starts the run loop and performs the initial fetch.
func (ch *Channel) open(ctx context.Context) error {
	conn, err := ch.dial(ctx)
	if err != nil {
		ch.cancel()
		close(ch.done)
		return err
	}
	ch.mu.Lock()
	ch.conn = conn
	ch.mu.Unlock()

	go ch.run()
	go ch.readLoop(conn, ch.gen)
	// status changes go through the run loop like every other handler
	ch.do(func() { ch.setStatus(StatusSubscribed) })

	// initial fetch after subscribing; the overlap window yields duplicates,
	// not gaps, and duplicates merge away by id
	msgs, _, err := ch.store.ListMessages(ch.ctx, ch.forumID, ch.pageLimit, "")
	if err != nil {
		ch.Close()
		return err
	}
	ch.do(func() { ch.engine.LoadHistory(msgs) })
	return nil
}

func (ch *Channel) dial(ctx context.Context) (*clientConn, error) {
	u := ch.client.wsURL(ch.forumID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return newClientConn(ws), nil
}

// run owns the engine, the presence tracker and every handler invocation.
// All state mutation happens here; the rest of the channel talks to it
// through events and calls.
func (ch *Channel) run() {
	defer close(ch.done)
	for {
		select {
		case <-ch.ctx.Done():
			ch.teardown()
			return
		case fn := <-ch.calls:
			fn()
		case in := <-ch.events:
			if in.gen != ch.gen {
				continue // residue of a replaced connection
			}
			if in.err != nil {
				ch.handleDisconnect()
				continue
			}
			ch.apply(in.ev)
		}
	}
}

func (ch *Channel) apply(ev *event) {
	switch ev.kind {
	case wire.KindInsert:
		if ch.engine.ApplyInsert(*ev.row) && ch.handlers.OnInsert != nil {
			ch.handlers.OnInsert(*ev.row)
		}
	case wire.KindUpdate:
		if ch.engine.ApplyUpdate(*ev.row) && ch.handlers.OnUpdate != nil {
			if m, ok := ch.engine.Get(ev.row.ID); ok {
				ch.handlers.OnUpdate(m)
			}
		}
	case wire.KindPresenceState:
		peers := ch.presence.applySync(ev.peers)
		if ch.handlers.OnPresence != nil {
			ch.handlers.OnPresence(peers)
		}
	case wire.KindPeerJoined:
		ch.log.Debug("peer joined", "user", ev.peer.UserID)
		if ch.handlers.OnPeerJoined != nil {
			ch.handlers.OnPeerJoined(ev.peer.UserID)
		}
	case wire.KindPeerLeft:
		ch.log.Debug("peer left", "user", ev.peer.UserID)
		if ch.handlers.OnPeerLeft != nil {
			ch.handlers.OnPeerLeft(ev.peer.UserID)
		}
	case wire.KindTyping:
		if ch.handlers.OnTyping != nil {
			ch.handlers.OnTyping(*ev.typing)
		}
	}
}

// handleDisconnect applies the resubscription policy: one immediate attempt,
// then surface Disconnected. Unbounded silent retry is deliberately not done.
func (ch *Channel) handleDisconnect() {
	if ch.ctx.Err() != nil {
		return
	}
	ch.log.Warn("channel transport lost, resubscribing once")
	ch.setStatus(StatusResubscribing)

	conn, err := ch.dial(ch.ctx)
	if err != nil {
		ch.log.Warn("resubscribe failed", "err", err)
		ch.setStatus(StatusDisconnected)
		return
	}

	ch.mu.Lock()
	old := ch.conn
	ch.conn = conn
	ch.mu.Unlock()
	_ = old.close()
	ch.gen++
	go ch.readLoop(conn, ch.gen)

	// refetch to cover whatever the gap swallowed; late and duplicate rows
	// merge idempotently either way
	if msgs, _, err := ch.store.ListMessages(ch.ctx, ch.forumID, ch.pageLimit, ""); err == nil {
		ch.engine.LoadHistory(msgs)
	} else {
		ch.log.Warn("post-resubscribe refetch failed", "err", err)
	}
	ch.setStatus(StatusSubscribed)
}

func (ch *Channel) teardown() {
	ch.mu.Lock()
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()
	if conn != nil {
		_ = conn.close()
	}
	ch.presence.reset()
	ch.setStatus(StatusClosed)
}

// readLoop decodes and enriches frames for one connection generation.
// Malformed frames are dropped here and never reach the engine.
func (ch *Channel) readLoop(conn *clientConn, gen int) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			select {
			case ch.events <- inbound{err: err, gen: gen}:
			case <-ch.done:
			}
			return
		}

		ev, derr := decodeEvent(ch.forumID, data)
		if derr != nil {
			ch.log.Warn("dropping event", "err", derr)
			continue
		}

		// resolve author metadata in-line, before emission; resolve never
		// blocks delivery on a missing user
		if ev.kind == wire.KindInsert && ev.row.AuthorName == "" {
			u := ch.users.resolve(ch.ctx, ev.row.AuthorID)
			ev.row.AuthorName = u.DisplayName
			if u.AvatarURL != nil {
				ev.row.AuthorAvatar = *u.AvatarURL
			}
		}

		select {
		case ch.events <- inbound{ev: ev, gen: gen}:
		case <-ch.done:
			return
		}
	}
}

// do runs fn on the run loop and reports whether it was executed. After
// Close, results are discarded instead of being applied to torn-down state.
func (ch *Channel) do(fn func()) bool {
	ran := make(chan struct{})
	select {
	case ch.calls <- func() { fn(); close(ran) }:
	case <-ch.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-ch.done:
		return false
	}
}

func (ch *Channel) setStatus(s Status) {
	ch.mu.Lock()
	prev := ch.status
	ch.status = s
	ch.mu.Unlock()
	if prev != s && ch.handlers.OnStatus != nil {
		ch.handlers.OnStatus(s)
	}
}

// ForumID returns the conversation this channel is bound to.
func (ch *Channel) ForumID() string { return ch.forumID }

// Status returns the current lifecycle state.
func (ch *Channel) Status() Status {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status
}

// Snapshot returns the reconciled message tree. Nil after Close.
func (ch *Channel) Snapshot() []Thread {
	var out []Thread
	if !ch.do(func() { out = ch.engine.Snapshot() }) {
		return nil
	}
	return out
}

// Presence returns the current online set. Nil after Close.
func (ch *Channel) Presence() []Peer {
	var out []Peer
	if !ch.do(func() { out = ch.presence.snapshot() }) {
		return nil
	}
	return out
}

// Send performs the durable write for this forum. The local view is updated
// by the change-feed echo, not by this call.
func (ch *Channel) Send(ctx context.Context, content string, parentID *string, media []string) (*domain.Message, error) {
	if ch.isClosed() {
		return nil, ErrChannelClosed
	}
	return ch.store.CreateMessage(ctx, ch.forumID, content, parentID, media)
}

// ToggleReaction flips the caller's reaction. The RPC's payload is applied as
// an update when it lands; if the view has been closed meanwhile the result
// is discarded.
func (ch *Channel) ToggleReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	if ch.isClosed() {
		return nil, ErrChannelClosed
	}
	m, err := ch.store.ToggleReaction(ctx, ch.forumID, messageID, emoji)
	if err != nil {
		return nil, err
	}
	ch.do(func() { ch.engine.ApplyUpdate(*m) })
	return m, nil
}

// SetPinned flips the pinned flag (owner only server-side).
func (ch *Channel) SetPinned(ctx context.Context, messageID string, pinned bool) (*domain.Message, error) {
	if ch.isClosed() {
		return nil, ErrChannelClosed
	}
	m, err := ch.store.SetPinned(ctx, ch.forumID, messageID, pinned)
	if err != nil {
		return nil, err
	}
	ch.do(func() { ch.engine.ApplyUpdate(*m) })
	return m, nil
}

// SendTyping broadcasts a best-effort typing signal. Loss is fine; errors
// only surface so callers can stop signaling on a dead channel.
func (ch *Channel) SendTyping(label string) error {
	ch.mu.Lock()
	conn := ch.conn
	closed := ch.status == StatusClosed
	ch.mu.Unlock()
	if closed || conn == nil {
		return ErrChannelClosed
	}
	return conn.send(wire.Envelope{
		Type:    wire.KindTyping,
		Payload: wire.TypingPayload{ForumID: ch.forumID, UserID: ch.client.opts.UserID, Label: label},
	})
}

// Close tears the channel down: unsubscribes the socket, discards presence
// and typing handles, drops pending results, and frees the forum slot.
// Safe to call more than once.
func (ch *Channel) Close() error {
	ch.closeOnce.Do(func() {
		ch.cancel()
		<-ch.done
		ch.client.release(ch.forumID, ch)
	})
	return nil
}

func (ch *Channel) isClosed() bool {
	select {
	case <-ch.done:
		return true
	default:
		return ch.ctx.Err() != nil
	}
}

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrAlreadyOpen   = errors.New("channel already open for this forum")
)

// clientConn serializes writes on the shared socket.
type clientConn struct {
	ws     *websocket.Conn
	sendMu chan struct{}
}

func newClientConn(ws *websocket.Conn) *clientConn {
	return &clientConn{ws: ws, sendMu: make(chan struct{}, 1)}
}

func (c *clientConn) send(ev wire.Envelope) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.ws.WriteJSON(ev)
}

func (c *clientConn) close() error {
	return c.ws.Close()
}
