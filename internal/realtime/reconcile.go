package realtime

import (
	"sort"

	"github.com/fanforge/forum-service/internal/domain"
)

const defaultOrphanCap = 256

// Thread is one top-level message together with its replies, both ordered by
// (created_at, id) ascending.
type Thread struct {
	Message domain.Message
	Replies []domain.Message
}

// Engine merges the asynchronous inputs of one forum view (the initial
// history fetch, live insert events, live update events) into a single
// ordered, de-duplicated message tree. Identity is the message id everywhere;
// arrival order and array position carry no meaning, so every apply is safe
// to repeat.
//
// Orphan policy: a reply whose parent is not yet known is buffered (not
// dropped) and attached when the parent arrives through any input. The buffer
// is bounded; when full, the oldest orphan is evicted. This makes
// child-before-parent converge to the same tree as parent-before-child.
//
// Not safe for concurrent use: the owning channel's run loop is the only
// caller.
type Engine struct {
	forumID string

	byID    map[string]*domain.Message
	roots   []*domain.Message
	replies map[string][]*domain.Message // parent id -> ordered replies

	orphans   []*domain.Message // replies waiting for their parent, FIFO
	orphanCap int

	onPinned func(domain.Message)
}

func NewEngine(forumID string) *Engine {
	return &Engine{
		forumID:   forumID,
		byID:      make(map[string]*domain.Message),
		replies:   make(map[string][]*domain.Message),
		orphanCap: defaultOrphanCap,
	}
}

// SetPinHandler registers the one-shot "message pinned" notification. It
// fires exactly once per false→true transition; duplicate pinned updates are
// no-ops.
func (e *Engine) SetPinHandler(fn func(domain.Message)) {
	e.onPinned = fn
}

// SetOrphanCap bounds the orphan buffer; values below one are ignored.
func (e *Engine) SetOrphanCap(n int) {
	if n > 0 {
		e.orphanCap = n
	}
}

// LoadHistory merges a fetched page. Pages may arrive in any order relative
// to live events; rows already known by id are left untouched.
func (e *Engine) LoadHistory(msgs []domain.Message) {
	for _, m := range msgs {
		e.ApplyInsert(m)
	}
}

// ApplyInsert adds a message if its id is unknown. Returns false when the
// row was already visible (fetch racing the live event) or belongs to
// another forum.
func (e *Engine) ApplyInsert(m domain.Message) bool {
	if m.ID == "" || (m.ForumID != "" && m.ForumID != e.forumID) {
		return false
	}
	if _, ok := e.byID[m.ID]; ok {
		return false
	}

	stored := m.Clone()
	if stored.Reactions == nil {
		stored.Reactions = domain.Reactions{}
	}
	e.byID[stored.ID] = &stored

	if stored.ParentID == nil {
		e.roots = insertOrdered(e.roots, &stored)
	} else if _, ok := e.byID[*stored.ParentID]; ok {
		pid := *stored.ParentID
		e.replies[pid] = insertOrdered(e.replies[pid], &stored)
	} else {
		e.bufferOrphan(&stored)
	}

	e.adoptOrphans(stored.ID)
	return true
}

// ApplyUpdate applies a changed row to the message with the same id, wherever
// it sits in the tree. Only the pinned flag and the reactions mapping are
// replaced; content is immutable. The incoming reaction mapping wholly
// replaces the local one: the server is authoritative and local merging of
// concurrent reactors diverges. Unknown ids are ignored.
func (e *Engine) ApplyUpdate(m domain.Message) bool {
	cur, ok := e.byID[m.ID]
	if !ok {
		return false
	}
	if m.ForumID != "" && m.ForumID != e.forumID {
		return false
	}

	wasPinned := cur.Pinned
	cur.Pinned = m.Pinned
	cur.Reactions = m.Reactions.Clone()
	if cur.Reactions == nil {
		cur.Reactions = domain.Reactions{}
	}

	if !wasPinned && cur.Pinned && e.onPinned != nil {
		e.onPinned(cur.Clone())
	}
	return true
}

// Get returns a copy of the message with the given id, if known.
func (e *Engine) Get(id string) (domain.Message, bool) {
	m, ok := e.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	return m.Clone(), true
}

// Len counts every attached message, replies included (orphans excluded).
func (e *Engine) Len() int {
	n := len(e.roots)
	for _, rs := range e.replies {
		n += len(rs)
	}
	return n
}

// Snapshot returns the current tree as copies; the caller may hold the result
// across further applies.
func (e *Engine) Snapshot() []Thread {
	out := make([]Thread, 0, len(e.roots))
	for _, root := range e.roots {
		t := Thread{Message: root.Clone()}
		if rs := e.replies[root.ID]; len(rs) > 0 {
			t.Replies = make([]domain.Message, 0, len(rs))
			for _, r := range rs {
				t.Replies = append(t.Replies, r.Clone())
			}
		}
		out = append(out, t)
	}
	return out
}

func (e *Engine) bufferOrphan(m *domain.Message) {
	if len(e.orphans) >= e.orphanCap {
		evicted := e.orphans[0]
		e.orphans = e.orphans[1:]
		delete(e.byID, evicted.ID)
	}
	e.orphans = append(e.orphans, m)
}

// adoptOrphans attaches buffered replies waiting for parentID.
func (e *Engine) adoptOrphans(parentID string) {
	if len(e.orphans) == 0 {
		return
	}
	kept := e.orphans[:0]
	for _, o := range e.orphans {
		if o.ParentID != nil && *o.ParentID == parentID {
			e.replies[parentID] = insertOrdered(e.replies[parentID], o)
			continue
		}
		kept = append(kept, o)
	}
	e.orphans = kept
}

// insertOrdered keeps the slice sorted ascending by (created_at, id).
func insertOrdered(list []*domain.Message, m *domain.Message) []*domain.Message {
	i := sort.Search(len(list), func(i int) bool {
		if !list[i].CreatedAt.Equal(m.CreatedAt) {
			return list[i].CreatedAt.After(m.CreatedAt)
		}
		return list[i].ID > m.ID
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = m
	return list
}
