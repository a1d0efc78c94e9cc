package service

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/auth/domain"
	"outreach_backend/internal/auth/repository"
	"outreach_backend/internal/auth/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type fakeStore struct {
	users map[string]domain.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]domain.User)}
}

func (f *fakeStore) Create(_ context.Context, username, email, passwordHash string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	u := domain.User{ID: uuid.New(), Username: username, Email: email, PasswordHash: passwordHash}
	f.users[username] = u
	return u, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (domain.User, error) {
	u, ok := f.users[username]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

type testAuthConfig struct{}

func (testAuthConfig) GetJWTAccessSecret() string       { return "test-secret" }
func (testAuthConfig) GetAccessTokenTTL() time.Duration { return 15 * time.Minute }

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	return New(store, testAuthConfig{}, logger.New("test")), store
}

func register(t *testing.T, svc *Service) transport.UserResponse {
	t.Helper()
	u, err := svc.Register(context.Background(), transport.RegisterRequest{
		Username: "operator",
		Email:    "op@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	registered := register(t, svc)

	result, err := svc.Login(context.Background(), transport.LoginRequest{
		Username: "operator",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.TokenType != "Bearer" || result.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", result)
	}
	if result.User.ID != registered.ID {
		t.Fatal("token response carries wrong user")
	}

	token, err := jwt.Parse(result.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		t.Fatalf("issued token does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if sub, _ := claims.GetSubject(); sub != registered.ID.String() {
		t.Fatalf("sub = %q, want %q", sub, registered.ID)
	}
	if claims["username"] != "operator" {
		t.Fatalf("username claim = %v", claims["username"])
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	svc, _ := newTestService()
	register(t, svc)

	_, err := svc.Login(context.Background(), transport.LoginRequest{
		Username: "operator",
		Password: "wrong",
	})
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want Unauthorized (err: %v)", apperr.GetKind(err), err)
	}
}

func TestLoginUnknownUserIsUnauthorized(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Login(context.Background(), transport.LoginRequest{
		Username: "ghost",
		Password: "irrelevant",
	})
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want Unauthorized (err: %v)", apperr.GetKind(err), err)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	svc, _ := newTestService()
	register(t, svc)

	_, err := svc.Register(context.Background(), transport.RegisterRequest{
		Username: "operator",
		Email:    "other@example.com",
		Password: "another password!!",
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict (err: %v)", apperr.GetKind(err), err)
	}
}

func TestPasswordNeverStoredPlain(t *testing.T) {
	svc, store := newTestService()
	register(t, svc)

	u := store.users["operator"]
	if u.PasswordHash == "correct horse battery" {
		t.Fatal("password stored in plain text")
	}
}
