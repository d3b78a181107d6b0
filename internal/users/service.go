// Package users provides account management for the dashboard: admin-driven
// user creation, password sign-in, and password changes.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"labdesk/api/internal/rbac"
	"labdesk/api/internal/store"
	"labdesk/api/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// UserStore defines the storage interface the service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	SetUserRole(ctx context.Context, userID, role string) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// CreateRequest contains the fields an admin supplies for a new account.
type CreateRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
	TeamID      string
}

// Create provisions a new user with a bcrypt-hashed password. Unknown roles
// fall back to reviewer.
func (s *Service) Create(ctx context.Context, req CreateRequest) (store.User, error) {
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return store.User{}, errors.New("email, password, and display name are required")
	}
	if len(req.Password) < 8 {
		return store.User{}, ErrPasswordTooShort
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  req.DisplayName,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         string(rbac.Normalize(req.Role)),
		TeamID:       req.TeamID,
	}
	created, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// SignIn authenticates an email/password pair. Lookup and comparison
// failures collapse into one error so the response does not reveal which
// part was wrong.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if user.DeactivatedAt != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePassword changes a user's own password after checking the current
// one.
func (s *Service) UpdatePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return ErrPasswordTooShort
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetRole reassigns a user's base role. Unknown roles fall back to reviewer.
func (s *Service) SetRole(ctx context.Context, userID, role string) error {
	if err := s.store.SetUserRole(ctx, userID, string(rbac.Normalize(role))); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// List returns all accounts without their password hashes.
func (s *Service) List(ctx context.Context) ([]store.User, error) {
	items, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range items {
		items[i].PasswordHash = ""
	}
	return items, nil
}
