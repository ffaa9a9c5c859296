package service

import (
	"context"
	"fmt"

	"chatroom/internal/domain"
	"chatroom/internal/repository"
)

// UserService describes account operations used by chat sessions.
type UserService interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) error
}

type userService struct {
	credentials repository.CredentialRepository
}

func NewUserService(credentials repository.CredentialRepository) UserService {
	return &userService{credentials: credentials}
}

// Register validates the credentials and stores a new account. It returns
// domain.ErrUserAlreadyExists when the username is taken.
func (s *userService) Register(ctx context.Context, username, password string) error {
	if err := domain.ValidateCredentials(username, password); err != nil {
		return err
	}

	created, err := s.credentials.InsertIfAbsent(ctx, username, password)
	if err != nil {
		return fmt.Errorf("register %s: %w", username, err)
	}
	if !created {
		return domain.ErrUserAlreadyExists
	}
	return nil
}

// Authenticate validates the credentials and checks them against the store.
// It returns domain.ErrInvalidCredentials when no account matches.
func (s *userService) Authenticate(ctx context.Context, username, password string) error {
	if err := domain.ValidateCredentials(username, password); err != nil {
		return err
	}

	ok, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return fmt.Errorf("authenticate %s: %w", username, err)
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}
	return nil
}
