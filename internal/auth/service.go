package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/burdemar/orderflow/internal/clock"
	"github.com/burdemar/orderflow/internal/domain"
)

var ErrBadCredentials = errors.New("invalid username or password")

// UserRepository is the user store contract for login and bootstrap.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, u User) error
}

type Service struct {
	repo   UserRepository
	tokens *Tokens
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(repo UserRepository, tokens *Tokens, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, clock: clk, log: log}
}

// Login verifies the password and issues a signed token carrying the role.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return s.tokens.Issue(u.Username, u.Role, s.clock.Now())
}

// EnsureAdmin creates the bootstrap admin account when it does not exist.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	s.log.Info("admin user created", zap.String("username", username))
	return nil
}
