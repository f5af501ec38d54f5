package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fanforge/forum-service/internal/domain"
)

func TestStoreClient_CreateMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/forums/f1/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Content != "hi" {
			t.Errorf("content = %q", body.Content)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "m1", "forum_id": "f1", "author_id": "u1",
			"content": "hi", "created_at": "2026-03-01T10:00:00Z",
		})
	}))
	defer srv.Close()

	sc := NewStoreClient(srv.URL, "tok", nil)
	m, err := sc.CreateMessage(context.Background(), "f1", "hi", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID != "m1" || m.ForumID != "f1" {
		t.Fatalf("message = %+v", m)
	}
}

func TestStoreClient_ListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "25" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "m2", "forum_id": "f1", "created_at": "2026-03-01T10:01:00Z"},
				{"id": "m1", "forum_id": "f1", "created_at": "2026-03-01T10:00:00Z"},
			},
			"next_cursor": "abc",
		})
	}))
	defer srv.Close()

	sc := NewStoreClient(srv.URL, "tok", nil)
	msgs, next, err := sc.ListMessages(context.Background(), "f1", 25, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || next != "abc" {
		t.Fatalf("msgs = %d, next = %q", len(msgs), next)
	}
}

func TestStoreClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"permission", http.StatusForbidden, `{"error":"permission_denied"}`, domain.ErrPermissionDenied},
		{"forum", http.StatusNotFound, `{"error":"forum_not_found"}`, domain.ErrForumNotFound},
		{"message", http.StatusNotFound, `{"error":"message_not_found"}`, domain.ErrMessageNotFound},
		{"user", http.StatusNotFound, `{"error":"user_not_found"}`, domain.ErrUserNotFound},
		{"community", http.StatusNotFound, `{"error":"community_not_found"}`, domain.ErrCommunityNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			sc := NewStoreClient(srv.URL, "tok", nil)
			_, err := sc.ToggleReaction(context.Background(), "f1", "m1", "👍")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestStoreClient_OpaqueServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	sc := NewStoreClient(srv.URL, "tok", nil)
	_, err := sc.LookupUser(context.Background(), "u1")
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, sentinel := range []error{domain.ErrUserNotFound, domain.ErrPermissionDenied} {
		if errors.Is(err, sentinel) {
			t.Fatalf("5xx mapped to sentinel %v", sentinel)
		}
	}
}
