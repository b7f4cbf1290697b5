package market

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// FetchGossip devuelve los mensajes confirmados del hilo del evento.
func (c *Client) FetchGossip(ctx context.Context, eventID string) ([]domain.GossipMessage, error) {
	var resp gossipResponse
	if err := c.get(ctx, "/events/"+url.PathEscape(eventID)+"/gossip", &resp); err != nil {
		return nil, fmt.Errorf("market.FetchGossip %s: %w", eventID, err)
	}
	out := make([]domain.GossipMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, mapGossip(eventID, m))
	}
	return out, nil
}

// PostGossip publica un mensaje. Un solo intento: el reconciler gestiona el retry con el mismo localId.
func (c *Client) PostGossip(ctx context.Context, eventID, body string, replyTo *int64) (domain.GossipMessage, error) {
	var resp gossipDTO
	req := postGossipRequest{Message: body, ReplyToID: replyTo}
	if err := c.post(ctx, "/events/"+url.PathEscape(eventID)+"/gossip", 0, req, &resp); err != nil {
		return domain.GossipMessage{}, fmt.Errorf("market.PostGossip %s: %w", eventID, err)
	}
	msg := mapGossip(eventID, resp)
	if msg.ReplyTo == nil {
		msg.ReplyTo = replyTo
	}
	return msg, nil
}
