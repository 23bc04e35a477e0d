package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"expensetracker/internal/storage/memory"
	"expensetracker/internal/token"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	s := NewUserService(memory.New(), token.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour), nil)
	s.cost = bcrypt.MinCost
	return s
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	s := newUserService(t)

	if _, err := s.Register(ctx, "ana", "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     error
	}{
		{"missing username", " ", "b@example.com", "secret1", ErrUsernameRequired},
		{"missing email", "bob", "", "secret1", ErrEmailRequired},
		{"missing password", "bob", "b@example.com", "", ErrPasswordRequired},
		{"short password", "bob", "b@example.com", "12345", ErrPasswordTooShort},
		{"malformed email", "bob", "not-an-email", "secret1", ErrEmailInvalid},
		{"duplicate email", "bob", "ANA@example.com", "secret1", ErrEmailTaken},
		{"duplicate username", "ana", "other@example.com", "secret1", ErrUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.username, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
		})
	}
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	s := newUserService(t)

	user, err := s.Register(ctx, "ana", "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		sess, err := s.Login(ctx, "ana@example.com", "secret1")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if sess.User != user {
			t.Errorf("Login() user = %+v, want %+v", sess.User, user)
		}
		got, err := s.Authenticate(sess.Token)
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Authenticate() id = %d, want %d", got.ID, user.ID)
		}
	})

	for name, creds := range map[string][2]string{
		"wrong password": {"ana@example.com", "nope123"},
		"unknown email":  {"bob@example.com", "secret1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Login(ctx, creds[0], creds[1])
			if !errors.Is(err, ErrInvalidCredential) {
				t.Errorf("Login() error = %v, want ErrInvalidCredential", err)
			}
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		if _, err := s.Login(ctx, "", "x"); !errors.Is(err, ErrEmailRequired) {
			t.Errorf("Login() error = %v, want ErrEmailRequired", err)
		}
		if _, err := s.Login(ctx, "ana@example.com", ""); !errors.Is(err, ErrPasswordRequired) {
			t.Errorf("Login() error = %v, want ErrPasswordRequired", err)
		}
	})
}
