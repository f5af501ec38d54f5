package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
)

type fakeMessageStore struct {
	created *domain.Message
	toggled *domain.Message
	pinned  *domain.Message
	err     error
}

func (s *fakeMessageStore) Create(ctx context.Context, m *domain.Message) error {
	if s.err != nil {
		return s.err
	}
	m.ID = "m-created"
	m.CreatedAt = time.Now()
	s.created = m
	return nil
}

func (s *fakeMessageStore) Get(ctx context.Context, forumID, id string) (*domain.Message, error) {
	return nil, domain.ErrMessageNotFound
}

func (s *fakeMessageStore) List(ctx context.Context, forumID, after string, limit int) ([]domain.Message, string, error) {
	return nil, "", nil
}

func (s *fakeMessageStore) ToggleReaction(ctx context.Context, forumID, id, userID, emoji string) (*domain.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.toggled = &domain.Message{ID: id, ForumID: forumID, Reactions: domain.Reactions{emoji: {userID}}}
	return s.toggled, nil
}

func (s *fakeMessageStore) SetPinned(ctx context.Context, forumID, id string, pinned bool) (*domain.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.pinned = &domain.Message{ID: id, ForumID: forumID, Pinned: pinned}
	return s.pinned, nil
}

type fakeAuthorizer struct {
	canPost bool
	owns    bool
	err     error
}

func (a *fakeAuthorizer) CanPost(ctx context.Context, forumID, userID string) (bool, error) {
	return a.canPost, a.err
}

func (a *fakeAuthorizer) OwnsForum(ctx context.Context, forumID, userID string) (bool, error) {
	return a.owns, a.err
}

type recordingPublisher struct {
	inserts []domain.Message
	updates []domain.Message
}

func (p *recordingPublisher) PublishInsert(forumID string, m domain.Message) {
	p.inserts = append(p.inserts, m)
}

func (p *recordingPublisher) PublishUpdate(forumID string, m domain.Message) {
	p.updates = append(p.updates, m)
}

func newMessageService(store *fakeMessageStore, authz *fakeAuthorizer) (*MessageService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewMessageService(store, authz, pub), pub
}

func TestPost_PublishesInsert(t *testing.T) {
	store := &fakeMessageStore{}
	svc, pub := newMessageService(store, &fakeAuthorizer{canPost: true})

	m, err := svc.Post(context.Background(), "f1", "u1", "  hello  ", nil, nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if m.Content != "hello" {
		t.Fatalf("content not trimmed: %q", m.Content)
	}
	if len(pub.inserts) != 1 || pub.inserts[0].ID != "m-created" {
		t.Fatalf("insert event not published: %+v", pub.inserts)
	}
}

func TestPost_RejectsWithoutSubscription(t *testing.T) {
	store := &fakeMessageStore{}
	svc, pub := newMessageService(store, &fakeAuthorizer{canPost: false})

	_, err := svc.Post(context.Background(), "f1", "u1", "hello", nil, nil)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if store.created != nil {
		t.Fatalf("row written despite denial")
	}
	if len(pub.inserts) != 0 {
		t.Fatalf("event published despite denial")
	}
}

func TestPost_ContentValidation(t *testing.T) {
	svc, _ := newMessageService(&fakeMessageStore{}, &fakeAuthorizer{canPost: true})

	if _, err := svc.Post(context.Background(), "f1", "u1", "   ", nil, nil); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("blank content err = %v", err)
	}
	long := strings.Repeat("x", 4001)
	if _, err := svc.Post(context.Background(), "f1", "u1", long, nil, nil); !errors.Is(err, domain.ErrContentTooLong) {
		t.Fatalf("oversized content err = %v", err)
	}
}

func TestPost_StoreFailureNotPublished(t *testing.T) {
	boom := errors.New("insert failed")
	svc, pub := newMessageService(&fakeMessageStore{err: boom}, &fakeAuthorizer{canPost: true})

	if _, err := svc.Post(context.Background(), "f1", "u1", "hello", nil, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(pub.inserts) != 0 {
		t.Fatalf("event published for a failed write")
	}
}

func TestToggleReaction_PublishesUpdate(t *testing.T) {
	svc, pub := newMessageService(&fakeMessageStore{}, &fakeAuthorizer{canPost: true})

	m, err := svc.ToggleReaction(context.Background(), "f1", "m1", "u1", "👍")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !m.Reactions.Has("👍", "u1") {
		t.Fatalf("reaction missing: %+v", m.Reactions)
	}
	if len(pub.updates) != 1 {
		t.Fatalf("update event not published")
	}
}

func TestSetPinned_OwnerOnly(t *testing.T) {
	svc, pub := newMessageService(&fakeMessageStore{}, &fakeAuthorizer{canPost: true, owns: false})

	if _, err := svc.SetPinned(context.Background(), "f1", "m1", "u1", true); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("non-owner pin err = %v", err)
	}
	if len(pub.updates) != 0 {
		t.Fatalf("pin event published for a denied caller")
	}

	svc2, pub2 := newMessageService(&fakeMessageStore{}, &fakeAuthorizer{owns: true})
	m, err := svc2.SetPinned(context.Background(), "f1", "m1", "owner", true)
	if err != nil {
		t.Fatalf("owner pin: %v", err)
	}
	if !m.Pinned || len(pub2.updates) != 1 {
		t.Fatalf("pin not applied/published: %+v", m)
	}
}
