package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "pdf-generator/internal/utils"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisRecorder_RecordAndRecent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rec := NewRedisRecorder(rdb, "gen", 3)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, rec.Record(ctx, Record{Template: name, Bytes: 10, Duration: time.Second, CreatedAt: time.Now().UTC()}))
	}

	list, err := mr.List("gen")
	require.NoError(t, err)
	assert.Len(t, list, 3, "list is capped at maxEntries")

	got, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Template)
	assert.Equal(t, "c", got[1].Template)
	assert.Equal(t, time.Second, got[0].Duration)

	got, err = rec.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, rec.Close())
}

func TestRedisRecorder_BadPayload(t *testing.T) {
	mr, rdb := newTestRedis(t)
	_, err := mr.Lpush("gen", "{bad")
	require.NoError(t, err)

	_, err = NewRedisRecorder(rdb, "gen", 0).Recent(context.Background(), 5)
	assert.Error(t, err)
}

func TestRedisRecorder_ServerDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	err := NewRedisRecorder(rdb, "gen", 10).Record(context.Background(), Record{Template: "x"})
	assert.Error(t, err)
}

func TestNew_SelectsBackend(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := u.DefaultConfig()

	r, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, r)
	assert.NoError(t, r.Record(context.Background(), Record{}))

	cfg.Audit.Backend = u.AuditRedis
	_, err = New(cfg, nil)
	assert.Error(t, err, "redis backend needs a client")

	r, err = New(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &RedisRecorder{}, r)
	_, isLister := r.(Lister)
	assert.True(t, isLister)

	cfg.Audit.Backend = u.AuditPostgres
	cfg.Audit.Postgres = u.PostgresConfig{Host: "db", Database: "audit", User: "pdf"}
	r, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &PostgresRecorder{}, r)

	cfg.Audit.Backend = "mongo"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
