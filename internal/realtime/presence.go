package realtime

import "sort"

// presenceTracker keeps one forum's online set. The presence_state snapshot
// is authoritative: applySync replaces the whole set, so missed join/leave
// frames can never cause drift. Join/leave frames are advisory and do not
// touch the set.
type presenceTracker struct {
	peers map[string]Peer
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{peers: make(map[string]Peer)}
}

// applySync replaces the online set with the received snapshot and returns
// the new set, sorted by user id.
func (t *presenceTracker) applySync(peers []Peer) []Peer {
	next := make(map[string]Peer, len(peers))
	for _, p := range peers {
		next[p.UserID] = p
	}
	t.peers = next
	return t.snapshot()
}

func (t *presenceTracker) snapshot() []Peer {
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (t *presenceTracker) online(userID string) bool {
	_, ok := t.peers[userID]
	return ok
}

func (t *presenceTracker) reset() {
	t.peers = make(map[string]Peer)
}
