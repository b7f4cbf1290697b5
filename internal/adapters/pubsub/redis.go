package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix + eventID es el canal donde se publican los signals de un evento.
const ChannelPrefix = "pariwager:signals:"

// RedisPublisher implementa ports.SignalSink publicando JSON en Redis pub/sub.
// Los consumidores (notificaciones, UI) se suscriben por evento o con PSUBSCRIBE.
type RedisPublisher struct {
	r *redis.Client
}

// Connect abre el cliente y hace ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pubsub.Connect %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisPublisher envuelve un cliente ya conectado.
func NewRedisPublisher(r *redis.Client) *RedisPublisher {
	return &RedisPublisher{r: r}
}

// Channel devuelve el canal de un evento.
func Channel(eventID string) string {
	return ChannelPrefix + eventID
}

// Emit publica el signal. Sin suscriptores no es un error.
func (p *RedisPublisher) Emit(ctx context.Context, s domain.Signal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("pubsub.Emit: marshal: %w", err)
	}
	if err := p.r.Publish(ctx, Channel(s.EventID), payload).Err(); err != nil {
		return fmt.Errorf("pubsub.Emit %s: %w", s.Kind, err)
	}
	return nil
}
