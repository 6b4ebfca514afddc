package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/crypto"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/token"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
	creates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[user.Email]; exists {
		return repository.ErrInvalidArgument
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	f.creates++
	return nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func newTestService(users repository.UserRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(users, log, Config{
		JWTSecret:      "test-secret",
		AccessTokenTTL: time.Hour,
		SystemTokenTTL: 5 * time.Minute,
	})
}

func seedUser(t *testing.T, repo *fakeUserRepo, email, password, role string) *domain.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	user := &domain.User{
		ID:           "user-" + role,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "admin@example.com", "secret123", domain.RoleAdmin)
	svc := newTestService(repo)

	session, err := svc.Login(context.Background(), "admin@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatal("expected access token")
	}
	claims, err := token.ParseUserToken(session.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("token parse failed: %v", err)
	}
	if claims.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role claim, got %q", claims.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "admin@example.com", "secret123", domain.RoleAdmin)
	svc := newTestService(repo)

	if _, err := svc.Login(context.Background(), "admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(newFakeUserRepo())
	if _, err := svc.Login(context.Background(), "nobody@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthorizeRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "member@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	session, err := svc.Login(context.Background(), "member@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	user, claims, err := svc.Authorize(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if user.Email != "member@example.com" || claims.UserID != user.ID {
		t.Fatalf("unexpected authorize result user=%+v claims=%+v", user, claims)
	}
}

func TestSystemTokenRoundTrip(t *testing.T) {
	svc := newTestService(newFakeUserRepo())
	signed, err := svc.SystemToken(token.PurposeMetricsSync)
	if err != nil {
		t.Fatalf("system token failed: %v", err)
	}
	if err := svc.VerifySystemToken(signed, token.PurposeMetricsSync); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := svc.VerifySystemToken(signed, "other_purpose"); err == nil {
		t.Fatal("expected purpose mismatch rejection")
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo)

	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "secret123"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "secret123"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("expected exactly one account created, got %d", repo.creates)
	}
	user, err := repo.GetUserByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("admin missing: %v", err)
	}
	if !user.IsAdmin() {
		t.Fatalf("expected admin role, got %q", user.Role)
	}
}

func TestEnsureAdminSkipsWhenUnconfigured(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo)
	if err := svc.EnsureAdmin(context.Background(), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 0 {
		t.Fatalf("expected no accounts created, got %d", repo.creates)
	}
}
