package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanforge/forum-service/internal/domain"
)

type ForumStore interface {
	Get(ctx context.Context, id string) (*domain.Forum, error)
	ListByCommunity(ctx context.Context, communityID string) ([]domain.Forum, error)
}

type CommunityStore interface {
	Create(ctx context.Context, c *domain.Community, types []domain.ForumType) ([]domain.Forum, error)
	Get(ctx context.Context, id string) (*domain.Community, error)
	Subscribe(ctx context.Context, communityID, userID string) error
}

type ForumService struct {
	forums      ForumStore
	communities CommunityStore
}

func NewForumService(forums ForumStore, communities CommunityStore) *ForumService {
	return &ForumService{forums: forums, communities: communities}
}

// CreateCommunity bootstraps a community with its standard forums.
func (s *ForumService) CreateCommunity(ctx context.Context, ownerID, name string) (*domain.Community, []domain.Forum, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("community name is required")
	}

	c := &domain.Community{OwnerID: ownerID, Name: name}
	forums, err := s.communities.Create(ctx, c, []domain.ForumType{domain.ForumAllChat, domain.ForumFanArt})
	if err != nil {
		return nil, nil, fmt.Errorf("communities.Create: %w", err)
	}
	return c, forums, nil
}

func (s *ForumService) GetForum(ctx context.Context, id string) (*domain.Forum, error) {
	return s.forums.Get(ctx, id)
}

// GetCommunity returns the community together with its forums.
func (s *ForumService) GetCommunity(ctx context.Context, id string) (*domain.Community, []domain.Forum, error) {
	c, err := s.communities.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	forums, err := s.forums.ListByCommunity(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("forums.ListByCommunity: %w", err)
	}
	return c, forums, nil
}

func (s *ForumService) Subscribe(ctx context.Context, communityID, userID string) error {
	if _, err := s.communities.Get(ctx, communityID); err != nil {
		return err
	}
	return s.communities.Subscribe(ctx, communityID, userID)
}
