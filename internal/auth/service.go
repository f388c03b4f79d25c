package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parla-labs/parla/internal/users"
)

type Service struct {
	jwt         *JWTManager
	redisClient *redis.Client
	userSvc     *users.Service
}

func NewService(jwt *JWTManager, redisClient *redis.Client, userSvc *users.Service) *Service {
	return &Service{
		jwt:         jwt,
		redisClient: redisClient,
		userSvc:     userSvc,
	}
}

func (s *Service) GenerateTokens(ctx context.Context, user *users.User) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	// Store refresh token ID in Redis
	key := fmt.Sprintf("refresh:%s:%s", user.ID, tokenID)
	err = s.redisClient.Set(ctx, key, "1", s.jwt.RefreshExpiry()).Err()
	if err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return pair, nil
}

func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	// Check if refresh token exists in Redis
	key := fmt.Sprintf("refresh:%s:%s", claims.UserID, claims.TokenID)
	exists, err := s.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}

	// Revoke old refresh token
	s.redisClient.Del(ctx, key)

	// Re-read the user so rotated tokens carry current email and role
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id from refresh claims: %w", err)
	}
	user, err := s.userSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user for refresh: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user no longer exists")
	}

	return s.GenerateTokens(ctx, user)
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	// Delete all refresh tokens for this user
	pattern := fmt.Sprintf("refresh:%s:*", userID)
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redisClient.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}
