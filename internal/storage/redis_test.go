package storage

import (
	"context"
	"testing"
	"time"

	"jd-agent-go/internal/config"
	"jd-agent-go/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Address:         mr.Addr(),
		PoolSize:        2,
		SessionTTLHours: 1,
	}
	r, err := NewRedisAdapter(cfg)
	require.NoError(t, err)

	store := NewRedisSessionStore(r)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	created, err := store.Create(ctx)
	require.NoError(t, err)
	key := sessionKey(created.ID)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "app:jd:session:"+created.ID, key)
	assert.Equal(t, time.Hour, mr.TTL(key))

	reqs := types.NewJobRequirements()
	reqs.Title = "数据工程师"
	reqs.MustHave.TechnicalSkills = []string{"Go", "Kafka"}
	_, err = store.Update(ctx, created.ID, func(d *SessionData) {
		d.Scenario = types.ScenarioDetailedJD
		d.Requirements = &reqs
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionActive, got.Status)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
	require.NotNil(t, got.Data.Requirements)
	assert.Equal(t, []string{"Go", "Kafka"}, got.Data.Requirements.MustHave.TechnicalSkills)

	require.NoError(t, store.CloseSession(ctx, created.ID))
	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionClosed, got.Status)
	assert.Equal(t, "数据工程师", got.Data.Requirements.Title, "关闭不清除数据")
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	created, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Update(ctx, created.ID, func(*SessionData) {})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreCorruptData(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set(sessionKey("bad"), "{not json"))

	_, err := store.Get(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestNewRedisAdapterRequiresAddress(t *testing.T) {
	_, err := NewRedisAdapter(&config.RedisConfig{})
	assert.Error(t, err)
	_, err = NewRedisAdapter(nil)
	assert.Error(t, err)
}

func TestNewSessionStoreSelectsBackend(t *testing.T) {
	store, err := NewSessionStore(&config.RedisConfig{SessionTTLHours: 1})
	require.NoError(t, err)
	assert.IsType(t, &MemorySessionStore{}, store)

	mr := miniredis.RunT(t)
	store, err = NewSessionStore(&config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &RedisSessionStore{}, store)
}
