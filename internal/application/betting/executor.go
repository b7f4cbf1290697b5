package betting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alejandrodnm/pariwager/internal/ports"
)

// ErrNotResolved se devuelve al liquidar un evento que aún no tiene ganador.
var ErrNotResolved = errors.New("event not resolved")

// LedgerMirror es la vista local de los pools que el executor necesita.
// Implementada por livesync.Sync.
type LedgerMirror interface {
	Current(ctx context.Context, eventID string) (domain.Event, domain.PoolLedger, error)
	ForceRefresh(ctx context.Context, eventID string) error
	ApplyLocalStake(eventID, key string, amount decimal.Decimal) (uint64, error)
	RevertLocalStake(eventID string, token uint64)
}

// BetRequest es lo que pide el usuario. Amount llega como float desde la UI/CLI.
type BetRequest struct {
	EventID string
	Key     string // YES/NO o ID de outcome
	Amount  float64
	Bettor  string
}

// Receipt is the outcome of a successful Place.
type Receipt struct {
	Bet     domain.Bet
	Preview domain.Preview
}

// Settlement es el resultado de una apuesta propia en un evento resuelto.
type Settlement struct {
	Bet    domain.Bet
	Won    bool
	Payout decimal.Decimal
}

// Executor valida, previsualiza y confirma apuestas contra la Market API.
type Executor struct {
	api     ports.MarketAPI
	mirror  LedgerMirror
	calc    *domain.Calculator
	balance ports.BalanceProvider
	journal ports.BetJournal
	now     func() time.Time

	mu     sync.Mutex
	resync map[string]bool // eventos cuyo último commit falló por red
}

// Option configura el Executor.
type Option func(*Executor)

// WithBalance habilita la comprobación de saldo antes del commit.
func WithBalance(b ports.BalanceProvider) Option {
	return func(e *Executor) { e.balance = b }
}

// WithJournal registra cada apuesta confirmada.
func WithJournal(j ports.BetJournal) Option {
	return func(e *Executor) { e.journal = j }
}

// New crea un Executor.
func New(api ports.MarketAPI, mirror LedgerMirror, calc *domain.Calculator, opts ...Option) *Executor {
	e := &Executor{
		api:    api,
		mirror: mirror,
		calc:   calc,
		now:    time.Now,
		resync: make(map[string]bool),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Preview valida la petición y calcula el preview sin confirmar nada.
func (e *Executor) Preview(ctx context.Context, req BetRequest) (domain.Preview, error) {
	event, ledger, amount, err := e.validate(ctx, req)
	if err != nil {
		return domain.Preview{}, fmt.Errorf("betting.Preview: %w", err)
	}
	p, err := e.calc.Preview(event, ledger, req.Key, amount)
	if err != nil {
		return domain.Preview{}, fmt.Errorf("betting.Preview: %w", err)
	}
	return p, nil
}

// Place valida la apuesta, la refleja en el espejo local y la confirma en el
// servidor. Si el servidor falla, la stake local se revierte. Nunca reintenta.
func (e *Executor) Place(ctx context.Context, req BetRequest) (Receipt, error) {
	if e.needsResync(req.EventID) {
		slog.Info("resyncing event before bet", "event", req.EventID)
		if err := e.mirror.ForceRefresh(ctx, req.EventID); err != nil {
			return Receipt{}, fmt.Errorf("betting.Place: resync: %w", err)
		}
		e.setResync(req.EventID, false)
	}

	event, ledger, amount, err := e.validate(ctx, req)
	if err != nil {
		return Receipt{}, fmt.Errorf("betting.Place: %w", err)
	}

	if e.balance != nil && req.Bettor != "" {
		bal, err := e.balance.AvailableBalance(ctx, req.Bettor)
		if err != nil {
			return Receipt{}, fmt.Errorf("betting.Place: balance: %w", err)
		}
		if amount.GreaterThan(bal) {
			return Receipt{}, fmt.Errorf("betting.Place: %w: stake %s, available %s",
				domain.ErrInsufficientBalance, amount, bal)
		}
	}

	preview, err := e.calc.Preview(event, ledger, req.Key, amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("betting.Place: preview: %w", err)
	}
	if preview.LowLiquidity {
		slog.Warn("low liquidity bet", "event", req.EventID, "key", req.Key, "amount", amount.String())
	}

	token, mirrored := e.applyLocal(req.EventID, req.Key, amount)

	placed, err := e.api.PlaceBet(ctx, req.EventID, req.Key, amount)
	if err != nil {
		if mirrored {
			e.mirror.RevertLocalStake(req.EventID, token)
		}
		if domain.IsRetryable(err) {
			e.setResync(req.EventID, true)
		}
		e.refresh(ctx, req.EventID)

		slog.Warn("bet failed",
			"event", req.EventID,
			"key", req.Key,
			"amount", amount.String(),
			"retryable", domain.IsRetryable(err),
			"err", err,
		)
		return Receipt{}, fmt.Errorf("betting.Place: commit: %w", err)
	}

	bet := domain.Bet{
		ID:       placed.BetID,
		EventID:  req.EventID,
		Key:      req.Key,
		Amount:   amount,
		Bettor:   req.Bettor,
		PlacedAt: placed.PlacedAt,
	}
	if bet.ID == "" {
		bet.ID = uuid.NewString()
	}
	if bet.PlacedAt.IsZero() {
		bet.PlacedAt = e.now()
	}

	if e.journal != nil {
		if err := e.journal.RecordBet(ctx, bet); err != nil {
			slog.Warn("bet journal error", "bet", bet.ID, "err", err)
		}
	}
	e.refresh(ctx, req.EventID)

	slog.Info("bet placed",
		"bet", bet.ID,
		"event", bet.EventID,
		"key", bet.Key,
		"amount", amount.String(),
		"payout", preview.Payout.StringFixed(2),
		"odds", domain.OddsDisplay(preview.EffectiveOdds),
	)
	return Receipt{Bet: bet, Preview: preview}, nil
}

// Settle devuelve el payout de cada apuesta registrada en un evento resuelto.
func (e *Executor) Settle(ctx context.Context, eventID string) ([]Settlement, error) {
	if e.journal == nil {
		return nil, errors.New("betting.Settle: no bet journal configured")
	}
	event, ledger, err := e.mirror.Current(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("betting.Settle: load event: %w", err)
	}
	if event.Status != domain.StatusResolved || event.Winner == "" {
		return nil, fmt.Errorf("betting.Settle: %s: %w", eventID, ErrNotResolved)
	}

	bets, err := e.journal.BetsForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("betting.Settle: journal: %w", err)
	}

	out := make([]Settlement, 0, len(bets))
	for _, b := range bets {
		s := Settlement{Bet: b, Payout: decimal.Zero}
		if b.Key == event.Winner {
			payout, err := domain.SettlementPayout(ledger, event.Winner, b.Amount)
			if err != nil {
				return nil, fmt.Errorf("betting.Settle: bet %s: %w", b.ID, err)
			}
			s.Won = true
			s.Payout = payout
		}
		out = append(out, s)
	}
	return out, nil
}

// validate aplica el orden de validación: evento abierto, outcome, stake.
func (e *Executor) validate(ctx context.Context, req BetRequest) (domain.Event, domain.PoolLedger, decimal.Decimal, error) {
	event, ledger, err := e.mirror.Current(ctx, req.EventID)
	if err != nil {
		return domain.Event{}, domain.PoolLedger{}, decimal.Zero, fmt.Errorf("load event: %w", err)
	}
	if !event.IsOpen() {
		return event, ledger, decimal.Zero, fmt.Errorf("%w: %s is %s", domain.ErrEventNotOpen, req.EventID, event.Status)
	}
	if !event.HasOutcome(req.Key) {
		return event, ledger, decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidOutcome, req.Key)
	}
	amount, err := domain.StakeFromFloat(req.Amount)
	if err != nil {
		return event, ledger, decimal.Zero, err
	}
	return event, ledger, amount, nil
}

func (e *Executor) applyLocal(eventID, key string, amount decimal.Decimal) (uint64, bool) {
	token, err := e.mirror.ApplyLocalStake(eventID, key, amount)
	if err != nil {
		slog.Debug("optimistic stake skipped", "event", eventID, "err", err)
		return 0, false
	}
	return token, true
}

func (e *Executor) refresh(ctx context.Context, eventID string) {
	if err := e.mirror.ForceRefresh(ctx, eventID); err != nil {
		slog.Warn("post-bet refresh failed", "event", eventID, "err", err)
	}
}

func (e *Executor) needsResync(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resync[eventID]
}

func (e *Executor) setResync(eventID string, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.resync[eventID] = true
		return
	}
	delete(e.resync, eventID)
}
