package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *Store) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{}
	cfg.Telemetry.KeyPrefix = "pulsoft:patient:"
	cfg.Telemetry.ChangesSuffix = ":changes"
	cfg.Telemetry.Stream = "pulsoft:telemetry:stream"
	cfg.Telemetry.StreamMaxLen = 1000

	store := NewStore(cfg, redisClient, zap.NewNop())
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	return mr, redisClient, store
}

func fp(v float64) *float64 { return &v }

func TestStore_Get_NotFound(t *testing.T) {
	_, _, store := setupTestStore(t)

	_, err := store.Get(context.Background(), "p-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_GetOrInit_WritesDefaultsOnce(t *testing.T) {
	mr, _, store := setupTestStore(t)
	ctx := context.Background()

	snap, err := store.GetOrInit(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", snap.PatientID)
	assert.Zero(t, snap.Cardiovascular)
	assert.Zero(t, snap.Sudor)
	assert.Zero(t, snap.Temperatura)
	assert.False(t, snap.PanicMode)
	assert.Equal(t, int64(0), snap.Version)

	assert.True(t, mr.Exists("pulsoft:patient:p-1"))

	// 已存在时不再覆盖
	_, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(88)})
	require.NoError(t, err)

	inited, err := store.EnsureInitialized(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, inited)

	snap, err = store.GetOrInit(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 88.0, snap.Cardiovascular)
}

func TestStore_EnsureInitialized_ConcurrentCreatorsConverge(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.EnsureInitialized(ctx, "p-1")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestStore_ApplyReading_MergesPartialUpdates(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	snap, err := store.ApplyReading(ctx, "p-1", models.VitalsReading{
		Cardiovascular: fp(110),
		Sudor:          fp(80),
		Temperatura:    fp(39.5),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)

	snap, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(95)})
	require.NoError(t, err)
	assert.Equal(t, 95.0, snap.Cardiovascular)
	assert.Equal(t, 80.0, snap.Sudor)
	assert.Equal(t, 39.5, snap.Temperatura)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), snap.UpdatedAt)

	got, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, *snap, *got)
}

func TestStore_ApplyReading_Empty(t *testing.T) {
	_, _, store := setupTestStore(t)

	_, err := store.ApplyReading(context.Background(), "p-1", models.VitalsReading{})
	assert.True(t, errors.Is(err, models.ErrInvalidSnapshot))
}

func TestStore_ApplyReading_AppendsToStream(t *testing.T) {
	_, client, store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(130), Sudor: fp(10), Temperatura: fp(20)})
	require.NoError(t, err)
	_, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(90)})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, store.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first, err := ParseChange(entries[0].Values)
	require.NoError(t, err)
	assert.Equal(t, "p-1", first.PatientID)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, 130.0, first.Cardiovascular)

	second, err := ParseChange(entries[1].Values)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, 90.0, second.Cardiovascular)
	assert.Equal(t, 10.0, second.Sudor)
}

func TestStore_TogglePanic(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	snap, err := store.TogglePanic(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, snap.PanicMode)

	snap, err = store.TogglePanic(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, snap.PanicMode)

	snap, err = store.SetPanic(ctx, "p-1", true)
	require.NoError(t, err)
	assert.True(t, snap.PanicMode)
	assert.Equal(t, int64(3), snap.Version)
}

func TestStore_Subscribe_ReceivesChanges(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	pubsub, err := store.Subscribe(ctx, "p-1")
	require.NoError(t, err)
	defer pubsub.Close()

	_, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(70)})
	require.NoError(t, err)

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "pulsoft:patient:p-1:changes", msg.Channel)
		assert.Equal(t, "p-1", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestParseChange_MissingPatientID(t *testing.T) {
	_, err := ParseChange(map[string]interface{}{"version": "1"})
	assert.Error(t, err)
}

func TestStore_Generation_StableUntilRecreated(t *testing.T) {
	mr, client, store := setupTestStore(t)
	ctx := context.Background()

	snap, err := store.GetOrInit(ctx, "p-1")
	require.NoError(t, err)
	gen := snap.Generation
	require.NotEmpty(t, gen)

	snap, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(130)})
	require.NoError(t, err)
	assert.Equal(t, gen, snap.Generation)
	assert.Equal(t, int64(1), snap.Version)

	entries, err := client.XRange(ctx, store.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	change, err := ParseChange(entries[0].Values)
	require.NoError(t, err)
	assert.Equal(t, gen, change.Generation)

	// 节点被删除后重建：新的 generation，version 从 1 重新开始
	mr.Del("pulsoft:patient:p-1")

	snap, err = store.ApplyReading(ctx, "p-1", models.VitalsReading{Cardiovascular: fp(90)})
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Generation)
	assert.NotEqual(t, gen, snap.Generation)
	assert.Equal(t, int64(1), snap.Version)
}

func TestStore_NotifyChanged(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	pubsub, err := store.Subscribe(ctx, "p-1")
	require.NoError(t, err)
	defer pubsub.Close()

	require.NoError(t, store.NotifyChanged(ctx, "p-1"))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "p-1", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}
}
