package gossip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alejandrodnm/pariwager/internal/ports"
)

var (
	// ErrEmptyMessage se devuelve al enviar un cuerpo vacío o solo espacios.
	ErrEmptyMessage = errors.New("gossip message is empty")
	// ErrNotRetryable: solo los mensajes en estado failed se pueden reintentar.
	ErrNotRetryable = errors.New("gossip message is not retryable")
)

// Reconciler mantiene el hilo de gossip de un evento: los mensajes
// confirmados por el servidor más los propios que aún no lo están.
type Reconciler struct {
	api     ports.GossipAPI
	sink    ports.SignalSink
	eventID string
	author  domain.Author
	now     func() time.Time

	mu          sync.Mutex
	confirmed   map[int64]domain.GossipMessage
	pending     map[string]*domain.GossipMessage // por LocalID
	provisional int64
}

// Option configura un Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now for the optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New crea un Reconciler para eventID. sink puede ser nil.
func New(api ports.GossipAPI, sink ports.SignalSink, eventID string, author domain.Author, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:       api,
		sink:      sink,
		eventID:   eventID,
		author:    author,
		now:       time.Now,
		confirmed: make(map[int64]domain.GossipMessage),
		pending:   make(map[string]*domain.GossipMessage),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load trae los mensajes confirmados del servidor y los fusiona con los ya
// conocidos. Un mensaje propio en failed que el servidor sí guardó (se perdió
// la respuesta) pasa a sent y deja de ser reintentable.
func (r *Reconciler) Load(ctx context.Context) error {
	msgs, err := r.api.FetchGossip(ctx, r.eventID)
	if err != nil {
		return fmt.Errorf("gossip.Load: %w", err)
	}

	r.mu.Lock()
	var adopted []string
	for _, m := range msgs {
		if m.State == "" {
			m.State = domain.DeliverySent
		}
		if prev, known := r.confirmed[m.ID]; known {
			if m.LocalID == "" {
				m.LocalID = prev.LocalID
			}
		} else if localID := r.matchFailedLocked(m); localID != "" {
			delete(r.pending, localID)
			m.LocalID = localID
			adopted = append(adopted, localID)
		}
		r.confirmed[m.ID] = m
	}
	confirmed := len(r.confirmed)
	r.mu.Unlock()

	for _, localID := range adopted {
		slog.Info("failed gossip found on server", "event", r.eventID, "local_id", localID)
		r.emit(ctx, localID, domain.DeliverySent)
	}
	slog.Debug("gossip loaded", "event", r.eventID, "messages", len(msgs), "confirmed", confirmed)
	return nil
}

// matchFailedLocked busca la entrada failed más antigua con el mismo autor,
// cuerpo y padre que m.
func (r *Reconciler) matchFailedLocked(m domain.GossipMessage) string {
	if r.author.ID == "" || m.Author.ID != r.author.ID {
		return ""
	}
	var (
		match string
		best  int64
	)
	for localID, e := range r.pending {
		if e.State != domain.DeliveryFailed || e.Body != m.Body || !sameParent(e.ReplyTo, m.ReplyTo) {
			continue
		}
		// IDs provisionales: el más antiguo es el más cercano a cero
		if match == "" || e.ID > best {
			match, best = localID, e.ID
		}
	}
	return match
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Send añade el mensaje al hilo como pending y lo publica. Si el servidor
// falla, queda como failed y se puede reintentar con Retry.
func (r *Reconciler) Send(ctx context.Context, body string, replyTo *int64) (domain.GossipMessage, error) {
	if strings.TrimSpace(body) == "" {
		return domain.GossipMessage{}, fmt.Errorf("gossip.Send: %w", ErrEmptyMessage)
	}

	r.mu.Lock()
	r.provisional--
	msg := domain.GossipMessage{
		ID:        r.provisional,
		LocalID:   uuid.NewString(),
		EventID:   r.eventID,
		Author:    r.author,
		Body:      body,
		ReplyTo:   replyTo,
		CreatedAt: r.now(),
		State:     domain.DeliveryPending,
	}
	r.pending[msg.LocalID] = &msg
	r.mu.Unlock()

	r.emit(ctx, msg.LocalID, domain.DeliveryPending)
	return r.deliver(ctx, msg.LocalID)
}

// Retry vuelve a publicar un mensaje failed con el mismo LocalID e ID provisional.
func (r *Reconciler) Retry(ctx context.Context, localID string) (domain.GossipMessage, error) {
	r.mu.Lock()
	e, ok := r.pending[localID]
	if !ok || e.State != domain.DeliveryFailed {
		r.mu.Unlock()
		return domain.GossipMessage{}, fmt.Errorf("gossip.Retry: %s: %w", localID, ErrNotRetryable)
	}
	e.State = domain.DeliveryPending
	r.mu.Unlock()

	r.emit(ctx, localID, domain.DeliveryPending)
	return r.deliver(ctx, localID)
}

// deliver publica la entrada pendiente y reconcilia la respuesta.
func (r *Reconciler) deliver(ctx context.Context, localID string) (domain.GossipMessage, error) {
	r.mu.Lock()
	e, ok := r.pending[localID]
	if !ok {
		r.mu.Unlock()
		return domain.GossipMessage{}, fmt.Errorf("gossip.deliver: %s: %w", localID, ErrNotRetryable)
	}
	body, replyTo, createdAt := e.Body, e.ReplyTo, e.CreatedAt
	r.mu.Unlock()

	sent, err := r.api.PostGossip(ctx, r.eventID, body, replyTo)

	r.mu.Lock()
	e, ok = r.pending[localID]
	if !ok {
		// ya confirmado por otra respuesta: ack duplicado
		r.mu.Unlock()
		slog.Debug("duplicate gossip ack ignored", "local_id", localID)
		return r.confirmedFor(localID)
	}
	if err != nil {
		e.State = domain.DeliveryFailed
		failed := *e
		r.mu.Unlock()

		slog.Warn("gossip post failed", "event", r.eventID, "local_id", localID, "err", err)
		r.emit(ctx, localID, domain.DeliveryFailed)
		return failed, fmt.Errorf("gossip.Send: %w", err)
	}

	delete(r.pending, localID)
	sent.LocalID = localID
	sent.State = domain.DeliverySent
	if sent.EventID == "" {
		sent.EventID = r.eventID
	}
	if sent.Author.ID == "" && sent.Author.Name == "" {
		sent.Author = r.author
	}
	if sent.CreatedAt.IsZero() {
		sent.CreatedAt = createdAt
	}
	if sent.ReplyTo == nil {
		sent.ReplyTo = replyTo
	}
	r.confirmed[sent.ID] = sent
	r.mu.Unlock()

	r.emit(ctx, localID, domain.DeliverySent)
	return sent, nil
}

func (r *Reconciler) confirmedFor(localID string) (domain.GossipMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.confirmed {
		if m.LocalID == localID {
			return m, nil
		}
	}
	return domain.GossipMessage{}, fmt.Errorf("gossip: %s: %w", localID, ErrNotRetryable)
}

// Thread devuelve la lista a mostrar: optimistas primero, luego confirmados.
func (r *Reconciler) Thread() []domain.ThreadEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	optimistic := make([]domain.GossipMessage, 0, len(r.pending))
	for _, e := range r.pending {
		optimistic = append(optimistic, *e)
	}
	confirmed := make([]domain.GossipMessage, 0, len(r.confirmed))
	for _, m := range r.confirmed {
		confirmed = append(confirmed, m)
	}
	return domain.MergeThread(optimistic, confirmed)
}

// Failed devuelve los mensajes propios que esperan un Retry, el más antiguo primero.
func (r *Reconciler) Failed() []domain.GossipMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GossipMessage
	for _, e := range r.pending {
		if e.State == domain.DeliveryFailed {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *Reconciler) emit(ctx context.Context, localID string, state domain.DeliveryState) {
	if r.sink == nil {
		return
	}
	sig := domain.Signal{
		Kind:    domain.SignalGossipState,
		EventID: r.eventID,
		LocalID: localID,
		State:   state,
		At:      r.now(),
	}
	if err := r.sink.Emit(ctx, sig); err != nil {
		slog.Warn("signal sink error", "kind", sig.Kind, "err", err)
	}
}
