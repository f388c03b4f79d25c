package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo                Repository
	defaultMinutesLimit float64
}

func NewService(repo Repository, defaultMinutesLimit float64) *Service {
	return &Service{repo: repo, defaultMinutesLimit: defaultMinutesLimit}
}

// Create registers a new student with the configured default allowance.
func (s *Service) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleStudent,
		MinutesLimit: s.defaultMinutesLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.resolveCapabilities()
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func (s *Service) SetMinutesLimit(ctx context.Context, id uuid.UUID, limit float64) error {
	return s.repo.UpdateMinutesLimit(ctx, id, limit)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}
