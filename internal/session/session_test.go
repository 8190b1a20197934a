package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "3",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type fakeAuth struct {
	token string
}

func (f fakeAuth) Login(ctx context.Context, email, password string) (string, entity.User, error) {
	if password != "secret" {
		return "", entity.User{}, entity.ErrUnauthorized
	}
	return f.token, entity.User{ID: "3", Email: email, FirstName: "Ana", Role: entity.RoleAdmin}, nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	s := &Session{ID: "s-1", CartID: "c-1", Token: "tok", User: &entity.User{ID: "3", Email: "ana@example.com"}}
	require.NoError(t, store.Put(ctx, s, time.Hour))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.CartID)
	assert.Equal(t, "ana@example.com", got.User.Email)
	assert.Equal(t, time.Hour, mr.TTL("storefront:session:s-1"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Session{ID: "s-1"}, time.Hour))
	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err := store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Session{ID: "s-1", CartID: "c-1"}, time.Minute))
	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	got.CartID = "mutated"

	again, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", again.CartID)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreSweepsExpiredOnPut(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		require.NoError(t, store.Put(ctx, &Session{ID: id}, time.Minute))
	}
	require.NoError(t, store.Put(ctx, &Session{ID: "keep"}, time.Hour))
	assert.Equal(t, 4, store.Len())

	now = now.Add(5 * time.Minute)
	require.NoError(t, store.Put(ctx, &Session{ID: "new"}, time.Minute))
	assert.Equal(t, 2, store.Len(), "expired sessions go without ever being read")

	_, err := store.Get(ctx, "keep")
	assert.NoError(t, err)
}

func TestManagerLifecycle(t *testing.T) {
	_, client := setupTestRedis(t)
	token := signedToken(t, time.Now().Add(time.Hour))
	m := NewManager(NewRedisStore(client), fakeAuth{token: token}, 0)
	ctx := context.Background()

	s, err := m.Restore(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.NotEmpty(t, s.CartID)
	assert.False(t, s.Authenticated())

	require.ErrorIs(t, m.Login(ctx, s, "ana@example.com", "wrong"), entity.ErrUnauthorized)
	require.ErrorIs(t, m.Login(ctx, s, "", ""), entity.ErrValidation)

	require.NoError(t, m.Login(ctx, s, "ana@example.com", "secret"))
	assert.True(t, s.IsAdmin())
	assert.False(t, s.IsSuperAdmin())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 5*time.Second)

	restored, err := m.Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, restored.Authenticated())
	assert.Equal(t, s.CartID, restored.CartID)

	require.NoError(t, m.Logout(ctx, restored))
	restored, err = m.Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, restored.Authenticated())
	assert.Equal(t, s.CartID, restored.CartID, "logout keeps the cart")

	require.NoError(t, m.Destroy(ctx, s.ID))
	fresh, err := m.Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, fresh.ID)
}

func TestRestoreDropsExpiredLogin(t *testing.T) {
	token := signedToken(t, time.Now().Add(-time.Minute))
	m := NewManager(NewMemoryStore(), fakeAuth{token: token}, time.Hour)
	ctx := context.Background()

	s, err := m.Restore(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Login(ctx, s, "ana@example.com", "secret"))

	restored, err := m.Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, restored.Authenticated())
	assert.Equal(t, s.CartID, restored.CartID)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	assert.True(t, TokenExpiry(signedToken(t, exp)).Equal(exp))
	assert.True(t, TokenExpiry("opaque-token").IsZero())
	assert.True(t, TokenExpiry("").IsZero())
}
