package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewService(db, NewTokens("test-secret", time.Hour))
	s.cost = bcrypt.MinCost
	return s
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Name:            "Jamie Rivera",
		Email:           "Jamie@Example.com ",
		Phone:           "+1 (555) 010-2000",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "jamie@example.com" {
		t.Errorf("email not normalized: %q", reg.User.Email)
	}
	if reg.User.PasswordHash == "secret1" {
		t.Error("password stored in plain text")
	}

	claims, err := s.Tokens().Validate(reg.Token)
	if err != nil || claims.UserID != reg.User.ID {
		t.Fatalf("registration token invalid: %+v %v", claims, err)
	}

	login, err := s.Login(ctx, LoginRequest{Email: "JAMIE@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("logged in as %s, want %s", login.User.ID, reg.User.ID)
	}

	if _, err := s.Register(ctx, validRegistration()); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, req := range []LoginRequest{
		{Email: "jamie@example.com", Password: "wrong!"},
		{Email: "nobody@example.com", Password: "secret1"},
		{Email: "", Password: ""},
	} {
		if _, err := s.Login(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("login %+v: expected ErrInvalidCredentials, got %v", req, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
	}{
		{"missing name", func(r *RegisterRequest) { r.Name = "  " }},
		{"missing email", func(r *RegisterRequest) { r.Email = "" }},
		{"bad email", func(r *RegisterRequest) { r.Email = "jamie@example" }},
		{"missing phone", func(r *RegisterRequest) { r.Phone = "" }},
		{"bad phone", func(r *RegisterRequest) { r.Phone = "call me" }},
		{"short password", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }},
		{"mismatch", func(r *RegisterRequest) { r.ConfirmPassword = "secret2" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			tt.mutate(&req)
			if _, err := s.Register(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens("secret-a", time.Minute)
	user := &models.User{ID: "u1", Email: "a@b.co"}

	token, ttl, err := tokens.Issue(user)
	if err != nil || ttl != 60 {
		t.Fatalf("Issue: ttl=%d err=%v", ttl, err)
	}

	if _, err := NewTokens("secret-b", time.Minute).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret must be rejected, got %v", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token must be rejected, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	token, _, err := tokens.Issue(&models.User{ID: "u42"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	app := fiber.New()
	app.Get("/me", Middleware(tokens), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	tests := []struct {
		header string
		status int
	}{
		{"", fiber.StatusUnauthorized},
		{"Basic abc", fiber.StatusUnauthorized},
		{"Bearer not-a-token", fiber.StatusUnauthorized},
		{"Bearer " + token, fiber.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("header %q: expected %d, got %d", tt.header, tt.status, resp.StatusCode)
		}
		if tt.status == fiber.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if strings.TrimSpace(string(body)) != "u42" {
				t.Errorf("expected user id in locals, got %q", body)
			}
		}
	}
}
