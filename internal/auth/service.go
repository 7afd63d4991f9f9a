package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/internal/storage/sqlite"
	"github.com/healthbot/backend/pkg/logger"
)

const minPasswordLen = 6

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
}

type Service struct {
	users  UserStore
	tokens *Tokens
	cost   int
}

func NewService(users UserStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *Service) Tokens() *Tokens {
	return s.tokens
}

func (r *RegisterRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *RegisterRequest) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case r.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case !emailPattern.MatchString(r.Email):
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	case r.Phone == "":
		return fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	case !phonePattern.MatchString(r.Phone):
		return fmt.Errorf("%w: phone number is invalid", ErrInvalidInput)
	case r.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(r.Password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	case r.Password != r.ConfirmPassword:
		return fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, sqlite.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User registered", zap.String("user_id", user.ID))
	return s.respond(user)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	logger.Info("User logged in", zap.String("user_id", user.ID))
	return s.respond(user)
}

func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) respond(user *models.User) (*AuthResponse, error) {
	token, expiresIn, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Token: token, ExpiresIn: expiresIn}, nil
}
