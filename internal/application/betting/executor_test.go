package betting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/pariwager/internal/application/livesync"
	"github.com/alejandrodnm/pariwager/internal/domain"
)

var _ LedgerMirror = (*livesync.Sync)(nil)

// --- fakes ---

type fakeAPI struct {
	mu       sync.Mutex
	event    domain.Event
	ledger   domain.PoolLedger
	placeErr error
	placed   domain.PlacedBet
	calls    int
}

func (f *fakeAPI) FetchEventDetail(context.Context, string) (domain.EventDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.EventDetail{Event: f.event, Ledger: f.ledger.Clone()}, nil
}

func (f *fakeAPI) FetchOdds(context.Context, string) (domain.PoolsUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.PoolsUpdate{Ledger: f.ledger.Clone()}, nil
}

// PlaceBet confirma la apuesta y la suma al ledger del "servidor".
func (f *fakeAPI) PlaceBet(_ context.Context, _, key string, amount decimal.Decimal) (domain.PlacedBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.placeErr != nil {
		return domain.PlacedBet{}, f.placeErr
	}
	_ = f.ledger.ApplyStake(key, amount)
	return f.placed, nil
}

func (f *fakeAPI) FetchEventActivity(context.Context, string) ([]domain.ActivityEntry, error) {
	return nil, nil
}

type fakeMirror struct {
	event   domain.Event
	ledger  domain.PoolLedger
	local   map[uint64]domain.Bet
	next    uint64
	log     []string
	reverts []uint64
}

func (m *fakeMirror) Current(context.Context, string) (domain.Event, domain.PoolLedger, error) {
	m.log = append(m.log, "current")
	l := m.ledger.Clone()
	for _, b := range m.local {
		_ = l.ApplyStake(b.Key, b.Amount)
	}
	return m.event, l, nil
}

func (m *fakeMirror) ForceRefresh(context.Context, string) error {
	m.log = append(m.log, "refresh")
	return nil
}

func (m *fakeMirror) ApplyLocalStake(_, key string, amount decimal.Decimal) (uint64, error) {
	m.log = append(m.log, "apply")
	if m.local == nil {
		m.local = map[uint64]domain.Bet{}
	}
	m.next++
	m.local[m.next] = domain.Bet{Key: key, Amount: amount}
	return m.next, nil
}

func (m *fakeMirror) RevertLocalStake(_ string, token uint64) {
	m.log = append(m.log, "revert")
	m.reverts = append(m.reverts, token)
	delete(m.local, token)
}

type fakeBalance struct{ amount decimal.Decimal }

func (f fakeBalance) AvailableBalance(context.Context, string) (decimal.Decimal, error) {
	return f.amount, nil
}

type memJournal struct{ bets []domain.Bet }

func (j *memJournal) RecordBet(_ context.Context, b domain.Bet) error {
	j.bets = append(j.bets, b)
	return nil
}

func (j *memJournal) BetsForEvent(_ context.Context, id string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range j.bets {
		if b.EventID == id {
			out = append(out, b)
		}
	}
	return out, nil
}

// --- helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func binaryEvent(status domain.EventStatus) domain.Event {
	return domain.Event{
		ID:     "evt-1",
		Type:   domain.EventBinary,
		Status: status,
		Outcomes: []domain.Outcome{
			{ID: domain.SideYes, SeedPercent: 50},
			{ID: domain.SideNo, SeedPercent: 50},
		},
	}
}

func scenarioLedger() domain.PoolLedger {
	return domain.NewPoolLedger(map[string]decimal.Decimal{
		domain.SideYes: dec("300"),
		domain.SideNo:  dec("700"),
	})
}

func newExecutor(api *fakeAPI, mirror *fakeMirror, opts ...Option) *Executor {
	return New(api, mirror, domain.NewCalculator(0), opts...)
}

// --- validation ---

func TestPlace_ValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.EventStatus
		key     string
		amount  float64
		balance string
		want    error
	}{
		{"closed wins over everything", domain.StatusClosed, "MAYBE", -1, "0", domain.ErrEventNotOpen},
		{"resolved", domain.StatusResolved, domain.SideYes, 10, "100", domain.ErrEventNotOpen},
		{"unknown outcome before stake", domain.StatusOpen, "MAYBE", -1, "0", domain.ErrInvalidOutcome},
		{"zero stake", domain.StatusOpen, domain.SideYes, 0, "0", domain.ErrInvalidStake},
		{"negative stake before balance", domain.StatusOpen, domain.SideYes, -5, "0", domain.ErrInvalidStake},
		{"balance too low", domain.StatusOpen, domain.SideYes, 10, "9.99", domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			mirror := &fakeMirror{event: binaryEvent(tt.status), ledger: scenarioLedger()}
			ex := newExecutor(api, mirror, WithBalance(fakeBalance{amount: dec(tt.balance)}))

			_, err := ex.Place(context.Background(), BetRequest{
				EventID: "evt-1", Key: tt.key, Amount: tt.amount, Bettor: "u-1",
			})
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, api.calls, "nothing reaches the server")
			assert.NotContains(t, mirror.log, "apply")
		})
	}
}

func TestPlace_BalanceSkippedWithoutBettor(t *testing.T) {
	api := &fakeAPI{placed: domain.PlacedBet{BetID: "b-1"}}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror, WithBalance(fakeBalance{amount: decimal.Zero}))

	_, err := ex.Place(context.Background(), BetRequest{EventID: "evt-1", Key: domain.SideNo, Amount: 10})
	assert.NoError(t, err)
}

// --- commit ---

func TestPlace_SuccessReturnsPreviewAndJournals(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	api := &fakeAPI{placed: domain.PlacedBet{BetID: "b-1", PlacedAt: at}}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	journal := &memJournal{}
	ex := newExecutor(api, mirror, WithJournal(journal), WithBalance(fakeBalance{amount: dec("1000")}))

	r, err := ex.Place(context.Background(), BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200, Bettor: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, "b-1", r.Bet.ID)
	assert.Equal(t, at, r.Bet.PlacedAt)
	assert.True(t, dec("200").Equal(r.Bet.Amount))
	assert.True(t, dec("480").Equal(r.Preview.Payout))
	assert.True(t, dec("2.4").Equal(r.Preview.EffectiveOdds))
	assert.False(t, r.Preview.LowLiquidity)

	require.Len(t, journal.bets, 1)
	assert.Equal(t, "u-1", journal.bets[0].Bettor)
	assert.Equal(t, []string{"current", "apply", "refresh"}, mirror.log)
	assert.Equal(t, 1, api.calls)
}

func TestPlace_MissingServerIDsAreFilledIn(t *testing.T) {
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	api := &fakeAPI{}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror)
	ex.now = func() time.Time { return fixed }

	r, err := ex.Place(context.Background(), BetRequest{EventID: "evt-1", Key: domain.SideNo, Amount: 1.5})
	require.NoError(t, err)
	assert.Len(t, r.Bet.ID, 36)
	assert.Equal(t, fixed, r.Bet.PlacedAt)
}

func TestPlace_RejectedRollsBackMirror(t *testing.T) {
	api := &fakeAPI{placeErr: &domain.RemoteRejectedError{Message: "Betting is paused for this market"}}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror)
	ctx := context.Background()

	_, err := ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200})
	var rejected *domain.RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Betting is paused for this market", rejected.Message)

	assert.Equal(t, []uint64{1}, mirror.reverts)
	_, l, _ := mirror.Current(ctx, "evt-1")
	assert.True(t, dec("1000").Equal(l.TotalPool()), "ledger back to pre-stake value")
	assert.Equal(t, []string{"current", "apply", "revert", "refresh", "current"}, mirror.log)

	// un rechazo no marca el evento para resync
	mirror.log = nil
	api.placeErr = nil
	_, err = ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, "current", mirror.log[0])
}

func TestPlace_ServerReportedInsufficientBalance(t *testing.T) {
	api := &fakeAPI{placeErr: errors.Join(domain.ErrInsufficientBalance,
		&domain.RemoteRejectedError{Message: "Insufficient balance"})}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror) // sin BalanceProvider: decide el servidor
	ctx := context.Background()

	_, err := ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200, Bettor: "u-1"})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	var rejected *domain.RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Insufficient balance", rejected.Message)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, []uint64{1}, mirror.reverts)
}

func TestPlace_NetworkErrorForcesResyncBeforeNextBet(t *testing.T) {
	api := &fakeAPI{placeErr: fmt.Errorf("%w: timeout", domain.ErrNetwork)}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror)
	ctx := context.Background()

	_, err := ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200})
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 1, api.calls, "no automatic retry")
	assert.Len(t, mirror.reverts, 1)

	mirror.log = nil
	api.placeErr = nil
	_, err = ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh", "current", "apply", "refresh"}, mirror.log)

	// el flag se consume una sola vez
	mirror.log = nil
	_, err = ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, "current", mirror.log[0])
}

func TestPreview_DoesNotCommit(t *testing.T) {
	api := &fakeAPI{}
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen), ledger: scenarioLedger()}
	ex := newExecutor(api, mirror)

	p, err := ex.Preview(context.Background(), BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200})
	require.NoError(t, err)
	assert.True(t, dec("280").Equal(p.Profit))
	assert.Zero(t, api.calls)
	assert.Equal(t, []string{"current"}, mirror.log)
}

// --- settlement ---

func TestSettle_ResolvedEvent(t *testing.T) {
	ev := binaryEvent(domain.StatusResolved)
	ev.Winner = domain.SideYes
	mirror := &fakeMirror{event: ev, ledger: domain.NewPoolLedger(map[string]decimal.Decimal{
		domain.SideYes: dec("500"),
		domain.SideNo:  dec("700"),
	})}
	journal := &memJournal{bets: []domain.Bet{
		{ID: "b-1", EventID: "evt-1", Key: domain.SideYes, Amount: dec("200")},
		{ID: "b-2", EventID: "evt-1", Key: domain.SideNo, Amount: dec("50")},
		{ID: "b-3", EventID: "evt-9", Key: domain.SideYes, Amount: dec("5")},
	}}
	ex := newExecutor(&fakeAPI{}, mirror, WithJournal(journal))

	out, err := ex.Settle(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.True(t, out[0].Won)
	assert.True(t, dec("480").Equal(out[0].Payout))
	assert.False(t, out[1].Won)
	assert.True(t, out[1].Payout.IsZero())
}

func TestSettle_OpenEvent(t *testing.T) {
	mirror := &fakeMirror{event: binaryEvent(domain.StatusOpen)}
	ex := newExecutor(&fakeAPI{}, mirror, WithJournal(&memJournal{}))

	_, err := ex.Settle(context.Background(), "evt-1")
	assert.ErrorIs(t, err, ErrNotResolved)
}

// --- con el espejo real ---

func TestPlace_WithLiveSyncMirror(t *testing.T) {
	api := &fakeAPI{
		event:  binaryEvent(domain.StatusOpen),
		ledger: scenarioLedger(),
		placed: domain.PlacedBet{BetID: "b-9"},
	}
	calc := domain.NewCalculator(0)
	mirror := livesync.New(livesync.DefaultConfig(), api, calc, nil)
	ex := New(api, mirror, calc)
	ctx := context.Background()

	r, err := ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideYes, Amount: 200})
	require.NoError(t, err)

	snap, ok := mirror.Snapshot("evt-1")
	require.True(t, ok)
	assert.True(t, dec("1200").Equal(snap.Ledger.TotalPool()), "stake counted once after the refresh")
	yes, _ := snap.Odds.Get(domain.SideYes)
	assert.Equal(t, r.Preview.After.Percents()[domain.SideYes], yes.Percent)

	api.placeErr = &domain.RemoteRejectedError{Message: "limit reached"}
	_, err = ex.Place(ctx, BetRequest{EventID: "evt-1", Key: domain.SideNo, Amount: 50})
	require.Error(t, err)
	snap, _ = mirror.Snapshot("evt-1")
	assert.True(t, dec("1200").Equal(snap.Ledger.TotalPool()), "rejected stake leaves no trace")
}
