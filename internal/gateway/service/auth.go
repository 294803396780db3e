package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("service: invalid credentials")
	ErrUsernameTaken      = errors.New("service: username taken")
	ErrInvalidUsername    = errors.New("service: invalid username")
	ErrWeakPassword       = errors.New("service: password too short")
)

// MinPasswordLen is the minimum accepted password length for registration.
const MinPasswordLen = 8

// AuthPayload is returned on successful login or registration.
type AuthPayload struct {
	Token       string   `json:"token"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	ExpiresIn   int64    `json:"expires_in"` // seconds
}

// AuthService issues tokens against stored credentials.
type AuthService struct {
	Store     store.Store
	Codec     *jwtx.Codec
	AccessTTL time.Duration
}

// Login verifies the password for username and issues an access token.
// Disabled identities and unknown usernames both fail with
// ErrInvalidCredentials so the response does not reveal which it was.
func (s *AuthService) Login(ctx context.Context, username, password string) (AuthPayload, error) {
	log := slogx.FromContext(ctx)
	username = strings.TrimSpace(username)

	identity, err := s.Store.Identities().GetIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("login failed", slog.String("username", username), slog.String("reason", "unknown user"))
			return AuthPayload{}, ErrInvalidCredentials
		}
		return AuthPayload{}, err
	}

	if err := cryptox.VerifyPassword(password, identity.PasswordHash); err != nil {
		log.Info("login failed", slog.String("username", username), slog.String("reason", "bad password"))
		return AuthPayload{}, ErrInvalidCredentials
	}
	if !identity.Enabled {
		log.Info("login failed", slog.String("username", username), slog.String("reason", "disabled"))
		return AuthPayload{}, ErrInvalidCredentials
	}

	return s.issue(identity)
}

// Register creates a new identity with the "user" authority and issues its
// first access token.
func (s *AuthService) Register(ctx context.Context, username, password string) (AuthPayload, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return AuthPayload{}, ErrInvalidUsername
	}
	if len(password) < MinPasswordLen {
		return AuthPayload{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return AuthPayload{}, err
	}

	identity := domain.Identity{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Authorities:  []string{"user"},
		Enabled:      true,
	}
	if err := s.Store.Identities().CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return AuthPayload{}, ErrUsernameTaken
		}
		return AuthPayload{}, err
	}

	slogx.FromContext(ctx).Info("identity registered", slog.String("username", username))
	return s.issue(identity)
}

func (s *AuthService) issue(identity domain.Identity) (AuthPayload, error) {
	token, err := s.Codec.Issue(identity.Username, s.AccessTTL)
	if err != nil {
		return AuthPayload{}, err
	}
	return AuthPayload{
		Token:       token,
		Username:    identity.Username,
		Authorities: identity.Authorities,
		ExpiresIn:   int64(s.AccessTTL.Seconds()),
	}, nil
}
