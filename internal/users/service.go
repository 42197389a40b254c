package users

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users, never nil.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: users: list: %w", shared.ErrStoreUnavailable, err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}
