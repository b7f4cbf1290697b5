package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alejandrodnm/pariwager/internal/adapters/pubsub"
	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Emit(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := pubsub.Connect(ctx, mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, pubsub.Channel("evt-1"))
	defer sub.Close()
	_, err = sub.Receive(ctx) // confirmación de suscripción
	require.NoError(t, err)

	pub := pubsub.NewRedisPublisher(rdb)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(ctx, domain.Signal{
		Kind:    domain.SignalNotableSwing,
		EventID: "evt-1",
		Key:     domain.SideYes,
		Delta:   -6,
		At:      at,
	}))

	var msg *redis.Message
	select {
	case msg = <-sub.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	var got domain.Signal
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, domain.SignalNotableSwing, got.Kind)
	assert.Equal(t, -6, got.Delta)
	assert.Equal(t, domain.SideYes, got.Key)
	assert.True(t, at.Equal(got.At))
}

func TestRedisPublisher_EmitWithoutSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	err := pubsub.NewRedisPublisher(rdb).Emit(context.Background(), domain.Signal{Kind: domain.SignalClosingSoon, EventID: "evt-2"})
	assert.NoError(t, err)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := pubsub.Connect(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
