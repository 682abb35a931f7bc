// Package accounts manages platform account registration and administration.
package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

// Service provides account operations.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// NewService creates an accounts service.
func NewService(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, log: log}
}

// Register creates a new account with the user role.
func (s *Service) Register(ctx context.Context, username, email string) (user.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < 3 || len(username) > 30 {
		return user.User{}, fmt.Errorf("username must be between 3 and 30 characters: %w", storage.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return user.User{}, fmt.Errorf("invalid email address: %w", storage.ErrInvalidInput)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Username: username,
		Email:    email,
		Role:     user.RoleUser,
	})
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", created.ID).WithField("username", created.Username).Info("account registered")
	return created, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns a page of accounts and the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]user.User, int64, error) {
	return s.store.ListUsers(ctx, offset, limit)
}

// SetStatus activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *Service) SetStatus(ctx context.Context, actorID, targetID string, active bool) (user.User, error) {
	if !active && actorID == targetID {
		return user.User{}, fmt.Errorf("cannot deactivate own account: %w", storage.ErrInvalidInput)
	}

	updated, err := s.store.SetUserStatus(ctx, targetID, active)
	if err != nil {
		return user.User{}, fmt.Errorf("set status for user %s: %w", targetID, err)
	}

	s.log.WithField("user_id", targetID).WithField("active", active).Info("account status changed")
	return updated, nil
}
