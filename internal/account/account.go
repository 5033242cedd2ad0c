// Package account signs users in and out and reads their profile and plan.
package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
)

type Gateway interface {
	Login(ctx context.Context, creds api.Credentials) (*api.Tokens, error)
	Signup(ctx context.Context, creds api.Credentials) (*api.Tokens, error)
	Me(ctx context.Context) (*api.User, error)
	Subscription(ctx context.Context) (*api.Subscription, error)
	VerifyEmail(ctx context.Context, token string) (*api.Message, error)
	RequestEmailVerification(ctx context.Context, email string) (*api.Message, error)
}

type Store interface {
	Set(access, refresh string) error
}

type Service struct {
	gateway Gateway
	store   Store
	logger  *zap.Logger
}

func New(gateway Gateway, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gateway: gateway, store: store, logger: logger}
}

// Login authenticates and stores the returned tokens. On failure the current session is kept.
func (s *Service) Login(ctx context.Context, email, password string) error {
	tokens, err := s.gateway.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}
	return s.keep(tokens, "signed in")
}

// Signup registers a new account and signs it in.
func (s *Service) Signup(ctx context.Context, email, password string) error {
	tokens, err := s.gateway.Signup(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}
	return s.keep(tokens, "account created")
}

func (s *Service) keep(tokens *api.Tokens, step string) error {
	if err := s.store.Set(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.logger.Info(step)
	return nil
}

func (s *Service) Profile(ctx context.Context) (*api.User, error) {
	return s.gateway.Me(ctx)
}

func (s *Service) Subscription(ctx context.Context) (*api.Subscription, error) {
	return s.gateway.Subscription(ctx)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	msg, err := s.gateway.VerifyEmail(ctx, token)
	if err != nil {
		return "", err
	}
	return msg.Message, nil
}

func (s *Service) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	msg, err := s.gateway.RequestEmailVerification(ctx, email)
	if err != nil {
		return "", err
	}
	return msg.Message, nil
}
