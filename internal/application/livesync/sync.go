package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alejandrodnm/pariwager/internal/ports"
)

// Config contiene los tiempos del refresco de odds.
type Config struct {
	Interval          time.Duration // periodo del ticker por evento observado
	CoalesceWindow    time.Duration // refrescos no forzados dentro de esta ventana reutilizan el resultado
	FetchTimeout      time.Duration
	DeltaLifetime     time.Duration // cuánto vive un odds delta antes de expirar
	SwingThreshold    int           // |Δ| en puntos porcentuales para notable_swing
	ClosingSoonWindow time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Interval:          5 * time.Second,
		CoalesceWindow:    3 * time.Second,
		FetchTimeout:      10 * time.Second,
		DeltaLifetime:     2500 * time.Millisecond,
		SwingThreshold:    5,
		ClosingSoonWindow: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = d.CoalesceWindow
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.DeltaLifetime <= 0 {
		c.DeltaLifetime = d.DeltaLifetime
	}
	if c.SwingThreshold <= 0 {
		c.SwingThreshold = d.SwingThreshold
	}
	if c.ClosingSoonWindow <= 0 {
		c.ClosingSoonWindow = d.ClosingSoonWindow
	}
	return c
}

// Snapshot is the cached view of one event: the server ledger plus any
// optimistic local stakes, and the odds derived from it.
type Snapshot struct {
	Event     domain.Event
	Ledger    domain.PoolLedger
	Odds      domain.OddsSnapshot
	FetchedAt time.Time
	// Stale is set when the last refresh failed and the cached data was returned instead.
	Stale bool
}

type localStake struct {
	key    string
	amount decimal.Decimal
}

type eventState struct {
	event     domain.Event
	hasEvent  bool
	base      domain.PoolLedger // último ledger del servidor
	local     map[uint64]localStake
	nextToken uint64
	fetchedAt time.Time
	percents  map[string]int // porcentajes del último fetch, base para los deltas
	deltas    []domain.Signal
	closing   bool // closing_soon ya emitido en esta sesión
}

// mirror devuelve base + stakes optimistas pendientes.
func (st *eventState) mirror() domain.PoolLedger {
	l := st.base.Clone()
	for _, s := range st.local {
		// los importes se validaron en ApplyLocalStake
		_ = l.ApplyStake(s.key, s.amount)
	}
	return l
}

// Sync mantiene un espejo local de los pools de cada evento observado y
// emite señales cuando las odds se mueven.
type Sync struct {
	cfg   Config
	api   ports.MarketAPI
	calc  *domain.Calculator
	sink  ports.SignalSink
	store ports.SnapshotStore
	now   func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	states  map[string]*eventState
	handles map[*Handle]struct{}
}

// Option configura un Sync.
type Option func(*Sync)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sync) { s.now = now }
}

// WithStore persiste cada ledger refrescado y permite Warm.
func WithStore(store ports.SnapshotStore) Option {
	return func(s *Sync) { s.store = store }
}

// New crea un Sync. sink puede ser nil si nadie consume señales.
func New(cfg Config, api ports.MarketAPI, calc *domain.Calculator, sink ports.SignalSink, opts ...Option) *Sync {
	s := &Sync{
		cfg:     cfg.withDefaults(),
		api:     api,
		calc:    calc,
		sink:    sink,
		now:     time.Now,
		states:  make(map[string]*eventState),
		handles: make(map[*Handle]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refresh devuelve el snapshot del evento. Sin force, un fetch completado hace
// menos de CoalesceWindow se reutiliza. En ambos casos se une a un fetch en
// curso para el mismo evento en vez de lanzar otro.
//
// Si el fetch falla y hay datos cacheados, devuelve la caché marcada Stale y
// error nil. Un fetch exitoso siempre actualiza el espejo, aunque el llamador
// que lo inició ya no esté; a un llamador cancelado solo se le devuelve su
// ctx.Err().
func (s *Sync) Refresh(ctx context.Context, eventID string, force bool) (Snapshot, error) {
	if !force {
		s.mu.Lock()
		st, ok := s.states[eventID]
		if ok && st.hasEvent && s.now().Sub(st.fetchedAt) < s.cfg.CoalesceWindow {
			snap := s.snapshotLocked(st)
			s.mu.Unlock()
			return snap, nil
		}
		s.mu.Unlock()
	}

	v, err, shared := s.group.Do(eventID, func() (any, error) {
		return s.fetch(ctx, eventID)
	})
	// el estado ya se actualizó; solo este llamador descarta el resultado
	if cerr := ctx.Err(); cerr != nil {
		slog.Debug("discarding refresh result", "event", eventID, "err", cerr)
		return Snapshot{}, fmt.Errorf("livesync.Refresh: %w", cerr)
	}
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st, ok := s.states[eventID]; ok && st.hasEvent {
			slog.Warn("odds refresh failed, serving cached snapshot",
				"event", eventID,
				"age", s.now().Sub(st.fetchedAt).Round(time.Millisecond),
				"err", err,
			)
			snap := s.snapshotLocked(st)
			snap.Stale = true
			return snap, nil
		}
		return Snapshot{}, fmt.Errorf("livesync.Refresh: %w", err)
	}
	if shared {
		slog.Debug("joined in-flight refresh", "event", eventID)
	}
	return v.(Snapshot), nil
}

// ForceRefresh hace un refresh forzado del evento y avisa al resto de eventos
// observados para que refresquen en su próxima oportunidad.
func (s *Sync) ForceRefresh(ctx context.Context, eventID string) error {
	_, err := s.Refresh(ctx, eventID, true)
	s.triggerOthers(eventID)
	return err
}

// fetch pide los datos al servidor y actualiza el estado. Corre como máximo
// una vez a la vez por evento (singleflight).
func (s *Sync) fetch(ctx context.Context, eventID string) (Snapshot, error) {
	// el fetch sobrevive a la cancelación del primer llamador: otros pueden
	// estar esperando el mismo resultado
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	s.mu.Lock()
	st, known := s.states[eventID]
	needDetail := !known || !st.hasEvent
	var cached domain.Event
	if known {
		cached = st.event
	}
	s.mu.Unlock()

	var (
		event  domain.Event
		ledger domain.PoolLedger
	)
	if needDetail {
		detail, err := s.api.FetchEventDetail(fctx, eventID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("fetch detail: %w", err)
		}
		event, ledger = detail.Event, detail.Ledger
	} else {
		upd, err := s.api.FetchOdds(fctx, eventID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("fetch odds: %w", err)
		}
		event, ledger = upd.ApplyTo(cached), upd.Ledger
	}

	now := s.now()
	s.mu.Lock()
	st = s.stateLocked(eventID)
	st.event = event
	st.hasEvent = true
	st.base = ledger
	st.local = nil // el servidor ya es la verdad
	st.fetchedAt = now

	odds := s.calc.Compute(event, ledger)
	signals := s.diffLocked(st, odds.Percents(), now)
	if sig, ok := s.closingLocked(st, now); ok {
		signals = append(signals, sig)
	}
	snap := s.snapshotLocked(st)
	s.mu.Unlock()

	for _, sig := range signals {
		s.emit(fctx, sig)
	}

	if s.store != nil {
		if err := s.store.SaveSnapshot(fctx, eventID, ledger, now); err != nil {
			slog.Warn("snapshot store error", "event", eventID, "err", err)
		}
	}

	slog.Debug("odds refreshed",
		"event", eventID,
		"total", ledger.TotalPool().String(),
		"status", event.Status,
		"signals", len(signals),
	)
	return snap, nil
}

// diffLocked compara los porcentajes nuevos con los del fetch anterior y
// genera odds_delta (y notable_swing si |Δ| supera el umbral).
func (s *Sync) diffLocked(st *eventState, next map[string]int, now time.Time) []domain.Signal {
	prev := st.percents
	st.percents = next
	st.deltas = pruneExpired(st.deltas, now)
	if prev == nil {
		return nil
	}

	var out []domain.Signal
	for _, key := range unionKeys(prev, next) {
		delta := next[key] - prev[key]
		if delta == 0 {
			continue
		}
		d := domain.Signal{
			Kind:      domain.SignalOddsDelta,
			EventID:   st.event.ID,
			Key:       key,
			Delta:     delta,
			At:        now,
			ExpiresAt: now.Add(s.cfg.DeltaLifetime),
		}
		st.deltas = append(st.deltas, d)
		out = append(out, d)

		if abs(delta) >= s.cfg.SwingThreshold {
			out = append(out, domain.Signal{
				Kind:    domain.SignalNotableSwing,
				EventID: st.event.ID,
				Key:     key,
				Delta:   delta,
				At:      now,
			})
		}
	}
	return out
}

// closingLocked emite closing_soon una sola vez por evento.
func (s *Sync) closingLocked(st *eventState, now time.Time) (domain.Signal, bool) {
	if st.closing || !st.event.IsOpen() {
		return domain.Signal{}, false
	}
	left := st.event.TimeToClose(now)
	if left <= 0 || left >= s.cfg.ClosingSoonWindow {
		return domain.Signal{}, false
	}
	st.closing = true
	return domain.Signal{
		Kind:        domain.SignalClosingSoon,
		EventID:     st.event.ID,
		MinutesLeft: int(math.Ceil(left.Minutes())),
		At:          now,
	}, true
}

func (s *Sync) emit(ctx context.Context, sig domain.Signal) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(ctx, sig); err != nil {
		slog.Warn("signal sink error", "kind", sig.Kind, "event", sig.EventID, "err", err)
	}
}

func (s *Sync) stateLocked(eventID string) *eventState {
	st, ok := s.states[eventID]
	if !ok {
		st = &eventState{event: domain.Event{ID: eventID}}
		s.states[eventID] = st
	}
	return st
}

func (s *Sync) snapshotLocked(st *eventState) Snapshot {
	ledger := st.mirror()
	return Snapshot{
		Event:     st.event,
		Ledger:    ledger,
		Odds:      s.calc.Compute(st.event, ledger),
		FetchedAt: st.fetchedAt,
	}
}

// Snapshot devuelve la vista cacheada sin ir a la red.
func (s *Sync) Snapshot(eventID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[eventID]
	if !ok || !st.hasEvent {
		return Snapshot{}, false
	}
	return s.snapshotLocked(st), true
}

// ActiveDeltas returns the odds deltas of the event that have not expired yet.
func (s *Sync) ActiveDeltas(eventID string) []domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[eventID]
	if !ok {
		return nil
	}
	st.deltas = pruneExpired(st.deltas, s.now())
	out := make([]domain.Signal, len(st.deltas))
	copy(out, st.deltas)
	return out
}

// Warm carga el último ledger persistido para que el primer fetch real
// pueda reportar lo que se movió mientras no estábamos mirando.
func (s *Sync) Warm(ctx context.Context, eventID string) error {
	if s.store == nil {
		return nil
	}
	ledger, fetchedAt, ok, err := s.store.LoadSnapshot(ctx, eventID)
	if err != nil {
		return fmt.Errorf("livesync.Warm: %w", err)
	}
	if !ok || !ledger.HasLiquidity() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(eventID)
	if st.hasEvent || st.percents != nil {
		return nil
	}
	st.base = ledger
	st.fetchedAt = fetchedAt
	st.percents = s.calc.Compute(st.event, ledger).Percents()
	slog.Debug("warmed from stored snapshot", "event", eventID, "fetched_at", fetchedAt)
	return nil
}

func pruneExpired(deltas []domain.Signal, now time.Time) []domain.Signal {
	kept := deltas[:0]
	for _, d := range deltas {
		if !d.Expired(now) {
			kept = append(kept, d)
		}
	}
	return kept
}

func unionKeys(a, b map[string]int) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for _, m := range []map[string]int{a, b} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
