package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanforge/forum-service/internal/domain"
)

const maxContentLen = 4000

// MessageStore is the slice of the repository the service needs.
type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, forumID, id string) (*domain.Message, error)
	List(ctx context.Context, forumID, after string, limit int) ([]domain.Message, string, error)
	ToggleReaction(ctx context.Context, forumID, id, userID, emoji string) (*domain.Message, error)
	SetPinned(ctx context.Context, forumID, id string, pinned bool) (*domain.Message, error)
}

// Authorizer answers the write-access question: active subscription or
// community ownership. Enforced here, opaque to everything above.
type Authorizer interface {
	CanPost(ctx context.Context, forumID, userID string) (bool, error)
	OwnsForum(ctx context.Context, forumID, userID string) (bool, error)
}

// EventPublisher pushes change-feed events to subscribed channels.
// The ws hub implements it; tests substitute a recorder.
type EventPublisher interface {
	PublishInsert(forumID string, m domain.Message)
	PublishUpdate(forumID string, m domain.Message)
}

type MessageService struct {
	messages  MessageStore
	authz     Authorizer
	publisher EventPublisher
}

func NewMessageService(messages MessageStore, authz Authorizer, publisher EventPublisher) *MessageService {
	return &MessageService{
		messages:  messages,
		authz:     authz,
		publisher: publisher,
	}
}

// Post performs the durable write and emits the insert event. The caller's
// own view is updated by the change feed echo, not by this return value.
func (s *MessageService) Post(ctx context.Context, forumID, authorID, content string, parentID *string, media []string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if len(content) > maxContentLen {
		return nil, domain.ErrContentTooLong
	}

	ok, err := s.authz.CanPost(ctx, forumID, authorID)
	if err != nil {
		return nil, fmt.Errorf("authz.CanPost: %w", err)
	}
	if !ok {
		return nil, domain.ErrPermissionDenied
	}

	m := &domain.Message{
		ForumID:  forumID,
		AuthorID: authorID,
		Content:  content,
		ParentID: parentID,
		Media:    media,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	s.publisher.PublishInsert(forumID, *m)
	return m, nil
}

func (s *MessageService) History(ctx context.Context, forumID, after string, limit int) ([]domain.Message, string, error) {
	return s.messages.List(ctx, forumID, after, limit)
}

// ToggleReaction flips the caller's reaction and broadcasts the new mapping.
// The returned row is authoritative; clients replace, never merge.
func (s *MessageService) ToggleReaction(ctx context.Context, forumID, messageID, userID, emoji string) (*domain.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, domain.ErrEmptyContent
	}

	ok, err := s.authz.CanPost(ctx, forumID, userID)
	if err != nil {
		return nil, fmt.Errorf("authz.CanPost: %w", err)
	}
	if !ok {
		return nil, domain.ErrPermissionDenied
	}

	m, err := s.messages.ToggleReaction(ctx, forumID, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishUpdate(forumID, *m)
	return m, nil
}

// SetPinned is restricted to the community owner.
func (s *MessageService) SetPinned(ctx context.Context, forumID, messageID, callerID string, pinned bool) (*domain.Message, error) {
	owns, err := s.authz.OwnsForum(ctx, forumID, callerID)
	if err != nil {
		return nil, fmt.Errorf("authz.OwnsForum: %w", err)
	}
	if !owns {
		return nil, domain.ErrPermissionDenied
	}

	m, err := s.messages.SetPinned(ctx, forumID, messageID, pinned)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishUpdate(forumID, *m)
	return m, nil
}
