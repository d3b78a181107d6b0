package users

import (
	"context"
	"errors"
	"testing"

	"labdesk/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]store.User, error) {
	items := make([]store.User, 0, len(m.users))
	for _, u := range m.users {
		items = append(items, u)
	}
	return items, nil
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return user, nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) SetUserRole(ctx context.Context, userID, role string) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.Role = role
	m.users[userID] = user
	return nil
}

func TestCreateAndSignIn(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{
		Email:       "Ana@Labdesk.Example",
		Password:    "open-sesame",
		DisplayName: "Ana Duarte",
		Role:        "editor",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "ana@labdesk.example" {
		t.Errorf("email not normalized: %q", created.Email)
	}
	if created.Role != "editor" {
		t.Errorf("role = %q", created.Role)
	}
	if created.PasswordHash == "open-sesame" || created.PasswordHash == "" {
		t.Error("password stored unhashed")
	}

	user, err := svc.SignIn(ctx, "ana@labdesk.example", "open-sesame")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("signed in as %q, want %q", user.ID, created.ID)
	}

	if _, err := svc.SignIn(ctx, "ana@labdesk.example", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := svc.SignIn(ctx, "ghost@labdesk.example", "open-sesame"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: err = %v", err)
	}

	req := CreateRequest{Email: "a@b.c", Password: "long-enough", DisplayName: "A"}
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: err = %v", err)
	}
}

func TestCreateNormalizesUnknownRole(t *testing.T) {
	svc := NewService(newMockUserStore())
	created, err := svc.Create(context.Background(), CreateRequest{
		Email:       "b@b.c",
		Password:    "long-enough",
		DisplayName: "B",
		Role:        "superuser",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Role != "reviewer" {
		t.Errorf("role = %q, want reviewer fallback", created.Role)
	}
}

func TestUpdatePassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateRequest{
		Email:       "c@b.c",
		Password:    "first-secret",
		DisplayName: "C",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.UpdatePassword(ctx, created.ID, "wrong-current", "second-secret"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong current password: err = %v", err)
	}
	if err := svc.UpdatePassword(ctx, created.ID, "first-secret", "tiny"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short new password: err = %v", err)
	}
	if err := svc.UpdatePassword(ctx, created.ID, "first-secret", "second-secret"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, "c@b.c", "second-secret"); err != nil {
		t.Errorf("sign in with new password failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, "c@b.c", "first-secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted")
	}
}

func TestSignInRejectsDeactivated(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateRequest{
		Email:       "d@b.c",
		Password:    "long-enough",
		DisplayName: "D",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	u := m.users[created.ID]
	now := u.CreatedAt
	u.DeactivatedAt = &now
	m.users[created.ID] = u

	if _, err := svc.SignIn(ctx, "d@b.c", "long-enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("deactivated account signed in: err = %v", err)
	}
}

func TestListStripsHashes(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateRequest{Email: "e@b.c", Password: "long-enough", DisplayName: "E"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, u := range items {
		if u.PasswordHash != "" {
			t.Errorf("hash leaked for %s", u.Email)
		}
	}
}
