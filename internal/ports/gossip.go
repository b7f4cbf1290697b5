package ports

import (
	"context"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// GossipAPI is the Social API surface used by the gossip reconciler.
type GossipAPI interface {
	// FetchGossip devuelve los mensajes confirmados de un evento.
	FetchGossip(ctx context.Context, eventID string) ([]domain.GossipMessage, error)

	// PostGossip publica un mensaje y devuelve el registro autoritativo.
	PostGossip(ctx context.Context, eventID, body string, replyTo *int64) (domain.GossipMessage, error)
}
