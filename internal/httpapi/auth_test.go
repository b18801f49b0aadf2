package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ponselkita/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				ID:        1,
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	_, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestLoginEmbedsBranchAndRoleInToken(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"cashier": {
				ID:        3,
				Username:  "cashier",
				Password:  "cashier123",
				Role:      domain.RoleCashier,
				BranchID:  1,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "cashier",
		Password: "cashier123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleCashier || resp.BranchID != 1 {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != 3 || actor.Username != "cashier" || actor.Role != domain.RoleCashier || actor.BranchID != 1 {
		t.Fatalf("unexpected actor from token: %+v", actor)
	}
}

func TestSystemAccountCannotLogIn(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			domain.SystemUsername: {
				ID:       5,
				Username: domain.SystemUsername,
				Role:     domain.RoleSystem,
				Active:   false,
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, userStore)
	_, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: domain.SystemUsername,
		Password: "",
	})
	if err == nil {
		t.Fatalf("expected system account login to fail")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, nil)

	if _, err := manager.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected parse failure for malformed token")
	}

	other := NewAuthManager("different-secret", time.Hour, nil)
	resp, err := other.sign("admin", credential{userID: 1, role: domain.RoleAdmin}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(resp); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
