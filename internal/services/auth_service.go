package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/log"

	"github.com/shopspring/decimal"
)

const MaxDisplayNameLen = 100

// Session is what a successful login or registration hands back.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

// UserProfiles reads and updates stored users.
type UserProfiles interface {
	UserByID(ctx context.Context, id string) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) error
}

type AuthService struct {
	passwords *auth.PasswordAuthenticator
	tokens    *auth.JWTManager
	users     UserProfiles
	events    EventPublisher
	now       func() time.Time
}

func NewAuthService(passwords *auth.PasswordAuthenticator, tokens *auth.JWTManager, users UserProfiles, events EventPublisher) *AuthService {
	if events == nil {
		events = NopPublisher{}
	}
	return &AuthService{passwords: passwords, tokens: tokens, users: users, events: events, now: time.Now}
}

// Register creates the account, logs it in and publishes user.registered so
// the worker can send a welcome email.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (Session, error) {
	user, err := s.passwords.Register(ctx, email, displayName, password)
	if err != nil {
		return Session{}, err
	}

	event := core.NewLedgerEvent(core.EventUserRegistered, user.ID, user.ID, decimal.Zero, s.now())
	event.Label = user.DisplayName
	publish(ctx, s.events, event)

	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *AuthService) Profile(ctx context.Context, ownerID string) (core.User, error) {
	return s.users.UserByID(ctx, ownerID)
}

// UpdateProfile changes the display name when one is given. A nil name
// leaves the profile as it is.
func (s *AuthService) UpdateProfile(ctx context.Context, ownerID string, displayName *string) (core.User, error) {
	user, err := s.users.UserByID(ctx, ownerID)
	if err != nil {
		return core.User{}, err
	}
	if displayName == nil {
		return user, nil
	}
	name := strings.TrimSpace(*displayName)
	if len(name) > MaxDisplayNameLen {
		return core.User{}, fmt.Errorf("%w: display name must be at most %d characters", core.ErrInvalidInput, MaxDisplayNameLen)
	}
	user.DisplayName = name
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	log.FromContext(ctx).InfoContext(ctx, "Profile updated", log.FieldOwnerID, ownerID)
	return user, nil
}

func (s *AuthService) session(user core.User) (Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokens.TokenDuration()),
		User:      user,
	}, nil
}
