package domain

import (
	"sort"
	"time"
)

// Message is the atomic unit of communication. Top-level posts and threaded
// replies share the same structure; a reply carries the parent's id in
// ParentID and must belong to the same forum as its parent.
//
// Content and media are immutable once created. The only permitted mutations
// are the pinned flag and the reactions mapping.
type Message struct {
	ID        string    `db:"id"`
	ForumID   string    `db:"forum_id"`
	AuthorID  string    `db:"author_id"`
	Content   string    `db:"content"`
	Media     []string  `db:"media"`
	Pinned    bool      `db:"pinned"`
	ParentID  *string   `db:"parent_id"`
	Reactions Reactions `db:"reactions"`
	CreatedAt time.Time `db:"created_at"`

	// resolved via user lookup, not stored with the row
	AuthorName   string
	AuthorAvatar string
}

// Reactions maps an emoji to the set of user ids who reacted with it.
// An id appears at most once per emoji; the slice is kept sorted so that
// equal sets compare equal.
type Reactions map[string][]string

// Has reports whether userID already reacted with emoji.
func (r Reactions) Has(emoji, userID string) bool {
	for _, id := range r[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}

// Toggle removes userID from emoji if present, adds it otherwise.
// Emoji keys with no reactors left are dropped.
func (r Reactions) Toggle(emoji, userID string) {
	ids := r[emoji]
	for i, id := range ids {
		if id == userID {
			ids = append(ids[:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = ids
			}
			return
		}
	}
	ids = append(ids, userID)
	sort.Strings(ids)
	r[emoji] = ids
}

// Clone returns a deep copy. Reconciliation replaces reaction mappings
// wholesale, so copies must never alias the source slices.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, ids := range r {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[emoji] = cp
	}
	return out
}

// Clone returns a deep copy of the message, including media and reactions.
func (m Message) Clone() Message {
	out := m
	if m.Media != nil {
		out.Media = make([]string, len(m.Media))
		copy(out.Media, m.Media)
	}
	if m.ParentID != nil {
		pid := *m.ParentID
		out.ParentID = &pid
	}
	out.Reactions = m.Reactions.Clone()
	return out
}
