package domain

import (
	"sort"
	"time"
)

// DeliveryState is the local delivery state of a gossip message.
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// Author identifica al autor de un mensaje.
type Author struct {
	ID   string
	Name string
}

// GossipMessage es un mensaje del hilo de un evento.
// ID es el del servidor una vez confirmado; antes es provisional (negativo).
type GossipMessage struct {
	ID        int64
	LocalID   string // token de correlación del cliente, vacío en mensajes ajenos
	EventID   string
	Author    Author
	Body      string
	ReplyTo   *int64
	CreatedAt time.Time
	State     DeliveryState
}

// IsProvisional returns true for optimistic entries not yet confirmed by the server.
func (m GossipMessage) IsProvisional() bool {
	return m.ID < 0
}

// ThreadEntry is one row of the merged display list.
type ThreadEntry struct {
	Message    GossipMessage
	ReplyLabel string // vacío si el padre no está cargado
}

// MergeThread builds the display list: optimistic entries first (most recent
// first), then confirmed messages by server recency, deduplicated by ID.
func MergeThread(optimistic, confirmed []GossipMessage) []ThreadEntry {
	byID := make(map[int64]GossipMessage, len(confirmed))
	for _, m := range confirmed {
		if _, dup := byID[m.ID]; !dup {
			byID[m.ID] = m
		}
	}

	server := make([]GossipMessage, 0, len(byID))
	for _, m := range byID {
		server = append(server, m)
	}
	sort.Slice(server, func(i, j int) bool {
		if !server[i].CreatedAt.Equal(server[j].CreatedAt) {
			return server[i].CreatedAt.After(server[j].CreatedAt)
		}
		return server[i].ID > server[j].ID
	})

	local := append([]GossipMessage(nil), optimistic...)
	sort.Slice(local, func(i, j int) bool {
		if !local[i].CreatedAt.Equal(local[j].CreatedAt) {
			return local[i].CreatedAt.After(local[j].CreatedAt)
		}
		// IDs provisionales decrecen: -3 es más reciente que -1
		return local[i].ID < local[j].ID
	})

	out := make([]ThreadEntry, 0, len(local)+len(server))
	for _, m := range local {
		out = append(out, ThreadEntry{Message: m, ReplyLabel: replyLabel(m, byID)})
	}
	for _, m := range server {
		out = append(out, ThreadEntry{Message: m, ReplyLabel: replyLabel(m, byID)})
	}
	return out
}

func replyLabel(m GossipMessage, confirmed map[int64]GossipMessage) string {
	if m.ReplyTo == nil {
		return ""
	}
	parent, ok := confirmed[*m.ReplyTo]
	if !ok {
		return ""
	}
	name := parent.Author.Name
	if name == "" {
		name = parent.Author.ID
	}
	return "replying to @" + name
}
