package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "s1", "g1"))
	// 组已存在时不报错
	require.NoError(t, CreateConsumerGroup(ctx, client, "s1", "g1"))
}

func TestReadFromStream_AndAck(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "s1", "g1"))
	_, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "s1",
		Values: map[string]interface{}{"patient_id": "p-1", "version": "3"},
	}).Result()
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "s1", "g1", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "p-1", msgs[0].Values["patient_id"])
	assert.Equal(t, "s1", msgs[0].Stream)

	require.NoError(t, Ack(ctx, client, "s1", "g1", msgs[0].ID))

	pending, err := client.XPending(ctx, "s1", "g1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestReadPendingFromStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "s1", "g1"))
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "s1",
		Values: map[string]interface{}{"patient_id": "p-1"},
	}).Err())

	// 读取但不确认
	msgs, err := ReadFromStream(ctx, client, "s1", "g1", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pending, err := ReadPendingFromStream(ctx, client, "s1", "g1", "c1", "0", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgs[0].ID, pending[0].ID)

	require.NoError(t, Ack(ctx, client, "s1", "g1", pending[0].ID))
	pending, err = ReadPendingFromStream(ctx, client, "s1", "g1", "c1", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
