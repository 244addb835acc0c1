package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestFromLoginReadsExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	s := FromLogin(domain.Login{
		AccessToken: signedToken(t, exp),
		TokenType:   "bearer",
		User:        domain.User{ID: 1, Name: "Ana", Email: "ana@example.com"},
	})
	if !s.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, s.ExpiresAt)
	}
	if s.Expired(time.Now()) {
		t.Fatalf("fresh session reported as expired")
	}
	if !s.Expired(exp.Add(time.Second)) {
		t.Fatalf("expected session to expire after exp")
	}
}

func TestFromLoginOpaqueToken(t *testing.T) {
	s := FromLogin(domain.Login{AccessToken: "opaque"})
	if !s.ExpiresAt.IsZero() {
		t.Fatalf("expected no expiry for opaque token, got %v", s.ExpiresAt)
	}
	if s.Expired(time.Now().Add(1000 * time.Hour)) {
		t.Fatalf("opaque token must never be reported expired")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.yaml"))

	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	want := Session{Token: "tok", TokenType: "bearer", User: domain.User{ID: 4, Name: "Bob", Email: "bob@example.com"}}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != want.Token || got.User != want.User {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreExpiresWithToken(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, "work")

	exp := time.Now().Add(10 * time.Minute)
	if err := store.Save(ctx, Session{Token: "tok", ExpiresAt: exp}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(sessionKey("work")); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Token != "tok" {
		t.Fatalf("unexpected token %q", got.Token)
	}

	mr.FastForward(11 * time.Minute)
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after expiry, got %v", err)
	}
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisStore(client, "")
	err := store.Save(context.Background(), Session{Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)})
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRedisStoreCorruptEntryIsDropped(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisStore(client, "default")
	if err := mr.Set(sessionKey("default"), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if mr.Exists(sessionKey("default")) {
		t.Fatalf("expected corrupt entry to be deleted")
	}
}

func TestSourceToken(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.yaml"))
	src := NewSource(store)

	if _, err := src.Token(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src.Now = func() time.Time { return now }
	if err := store.Save(ctx, Session{Token: "tok", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := src.Token(ctx)
	if err != nil || tok != "tok" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}

	src.Now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := src.Token(ctx); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
