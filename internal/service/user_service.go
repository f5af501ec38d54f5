package service

import (
	"context"

	"github.com/fanforge/forum-service/internal/domain"
)

type UserStore interface {
	Lookup(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) error
}

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Lookup(ctx context.Context, id string) (*domain.User, error) {
	return s.users.Lookup(ctx, id)
}

func (s *UserService) Register(ctx context.Context, u *domain.User) error {
	return s.users.Upsert(ctx, u)
}
