package livesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handle es el refresco periódico de un evento observado. Se crea con Start
// y se libera con Stop.
type Handle struct {
	eventID  string
	s        *Sync
	onUpdate func(Snapshot)

	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
	force    atomic.Bool
	updating atomic.Bool // onUpdate en curso
	stopped  sync.Once
}

// Start arranca el loop de refresco del evento: un refresh inmediato y luego
// uno por Interval, más los que se pidan con Trigger. onUpdate (opcional)
// recibe cada snapshot mientras el handle siga vivo; puede llamar a Stop.
func (s *Sync) Start(ctx context.Context, eventID string, onUpdate func(Snapshot)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		eventID:  eventID,
		s:        s,
		onUpdate: onUpdate,
		cancel:   cancel,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()

	go h.run(ctx)
	return h
}

// EventID devuelve el evento observado.
func (h *Handle) EventID() string { return h.eventID }

// Trigger pide un refresh fuera de ciclo. Varios triggers seguidos se
// colapsan en uno; basta con que uno sea forzado para que lo sea.
func (h *Handle) Trigger(force bool) {
	if force {
		h.force.Store(true)
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Stop cancela el loop y espera a que termine. Es idempotente. Con un
// onUpdate en curso (por ejemplo, si lo llama el propio onUpdate) no espera:
// el loop sale en cuanto onUpdate retorna y no entrega más snapshots.
func (h *Handle) Stop() {
	h.stopped.Do(func() {
		h.cancel()
		if !h.updating.Load() {
			<-h.done
		}
		h.s.mu.Lock()
		delete(h.s.handles, h)
		h.s.mu.Unlock()
	})
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	slog.Debug("live sync started", "event", h.eventID, "interval", h.s.cfg.Interval)
	h.refresh(ctx, false)

	ticker := time.NewTicker(h.s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("live sync stopped", "event", h.eventID)
			return
		case <-ticker.C:
			h.refresh(ctx, false)
		case <-h.wake:
			h.refresh(ctx, h.force.Swap(false))
		}
	}
}

func (h *Handle) refresh(ctx context.Context, force bool) {
	snap, err := h.s.Refresh(ctx, h.eventID, force)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Warn("live sync refresh failed", "event", h.eventID, "err", err)
		return
	}
	if h.onUpdate != nil {
		h.updating.Store(true)
		defer h.updating.Store(false)
		h.onUpdate(snap)
	}
}

// TriggerAll pide un refresh a todos los eventos observados.
func (s *Sync) TriggerAll(force bool) {
	for _, h := range s.activeHandles() {
		h.Trigger(force)
	}
}

func (s *Sync) triggerOthers(eventID string) {
	for _, h := range s.activeHandles() {
		if h.eventID != eventID {
			h.Trigger(false)
		}
	}
}

func (s *Sync) activeHandles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	return out
}
