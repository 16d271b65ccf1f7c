package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/storage/memory"

	"golang.org/x/crypto/bcrypt"
)

func newAuthService(rec *recorder) (*AuthService, *auth.JWTManager) {
	store := memory.New()
	passwords := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	tokens := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	s := NewAuthService(passwords, tokens, store, rec)
	s.now = fixedClock
	return s, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	rec := &recorder{}
	s, tokens := newAuthService(rec)
	ctx := context.Background()

	reg, err := s.Register(ctx, "Ann@Example.com", "Ann", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "ann@example.com" || reg.Token == "" {
		t.Fatalf("unexpected session %+v", reg)
	}
	if !reg.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", reg.ExpiresAt)
	}
	if len(rec.events) != 1 || rec.events[0].Type != core.EventUserRegistered || rec.events[0].OwnerID != reg.User.ID {
		t.Fatalf("unexpected events %+v", rec.events)
	}

	login, err := s.Login(ctx, "ann@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := tokens.Validate(login.Token)
	if err != nil || claims.UserID != reg.User.ID {
		t.Fatalf("token does not identify the user: %+v %v", claims, err)
	}

	if _, err := s.Login(ctx, "ann@example.com", "wrong password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	_, err = s.Register(ctx, "ann@example.com", "Again", "correct horse")
	wantKind(t, err, core.ErrEmailTaken)
	if len(rec.events) != 1 {
		t.Fatalf("failed registration must not publish, got %v", rec.types())
	}
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newAuthService(&recorder{})
	ctx := context.Background()
	reg, err := s.Register(ctx, "ann@example.com", "Ann", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	name := "  Ann Lee  "
	tests := []struct {
		name    string
		input   *string
		want    string
		wantErr error
	}{
		{name: "absent name keeps profile", input: nil, want: "Ann"},
		{name: "name is trimmed", input: &name, want: "Ann Lee"},
		{name: "too long", input: ptr(strings.Repeat("x", MaxDisplayNameLen+1)), wantErr: core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.UpdateProfile(ctx, reg.User.ID, tt.input)
			if tt.wantErr != nil {
				wantKind(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got.DisplayName != tt.want || got.Email != "ann@example.com" {
				t.Fatalf("profile = %+v", got)
			}
			stored, err := s.Profile(ctx, reg.User.ID)
			if err != nil || stored.DisplayName != tt.want {
				t.Fatalf("stored profile = %+v (err=%v)", stored, err)
			}
		})
	}

	_, err = s.UpdateProfile(ctx, "ghost", &name)
	wantKind(t, err, core.ErrNotFound)
	if _, err := s.Login(ctx, "ann@example.com", "correct horse"); err != nil {
		t.Fatalf("login after profile update: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
