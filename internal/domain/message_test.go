package domain

import "testing"

func TestReactions_ToggleAddRemove(t *testing.T) {
	r := Reactions{}

	r.Toggle("👍", "u1")
	if !r.Has("👍", "u1") {
		t.Fatalf("toggle did not add: %v", r)
	}

	r.Toggle("👍", "u1")
	if r.Has("👍", "u1") {
		t.Fatalf("second toggle did not remove: %v", r)
	}
	if _, ok := r["👍"]; ok {
		t.Fatalf("empty emoji key kept: %v", r)
	}
}

func TestReactions_ToggleKeepsSorted(t *testing.T) {
	r := Reactions{}
	r.Toggle("🔥", "zed")
	r.Toggle("🔥", "amy")
	r.Toggle("🔥", "mia")

	ids := r["🔥"]
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Fatalf("reactor list not sorted: %v", ids)
		}
	}
}

func TestReactions_CloneIsolated(t *testing.T) {
	r := Reactions{"👍": {"u1"}}
	c := r.Clone()

	c.Toggle("👍", "u2")
	if r.Has("👍", "u2") {
		t.Fatalf("clone aliases the source: %v", r)
	}

	if Reactions(nil).Clone() != nil {
		t.Fatalf("nil clone should stay nil")
	}
}

func TestMessage_CloneDeep(t *testing.T) {
	pid := "parent"
	m := Message{
		ID:        "m1",
		Media:     []string{"a.png"},
		ParentID:  &pid,
		Reactions: Reactions{"👍": {"u1"}},
	}

	c := m.Clone()
	c.Media[0] = "b.png"
	*c.ParentID = "other"
	c.Reactions.Toggle("👍", "u2")

	if m.Media[0] != "a.png" || *m.ParentID != "parent" || m.Reactions.Has("👍", "u2") {
		t.Fatalf("clone mutation leaked: %+v", m)
	}
}
