package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/pariwager/internal/adapters/storage"
	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeBet(id, eventID string, amount string, at time.Time) domain.Bet {
	return domain.Bet{
		ID:       id,
		EventID:  eventID,
		Key:      domain.SideYes,
		Amount:   decimal.RequireFromString(amount),
		Bettor:   "u-1",
		PlacedAt: at,
	}
}

func TestSQLiteStorage_RecordAndListBets(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordBet(ctx, makeBet("b-1", "evt-1", "200", base)))
	require.NoError(t, db.RecordBet(ctx, makeBet("b-2", "evt-1", "12.5", base.Add(time.Minute))))
	require.NoError(t, db.RecordBet(ctx, makeBet("b-3", "evt-2", "5", base)))

	bets, err := db.BetsForEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, bets, 2)

	// más recientes primero
	assert.Equal(t, "b-2", bets[0].ID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(bets[0].Amount))
	assert.Equal(t, base.Add(time.Minute), bets[0].PlacedAt)
	assert.Equal(t, domain.SideYes, bets[1].Key)
}

func TestSQLiteStorage_RecordBetIsIdempotent(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	bet := makeBet("b-1", "evt-1", "10", time.Now())

	require.NoError(t, db.RecordBet(ctx, bet))
	require.NoError(t, db.RecordBet(ctx, bet))

	bets, err := db.BetsForEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, bets, 1)
}

func TestSQLiteStorage_SnapshotRoundTrip(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	ledger := domain.NewPoolLedger(map[string]decimal.Decimal{
		domain.SideYes: decimal.NewFromInt(300),
		domain.SideNo:  decimal.RequireFromString("700.25"),
	})
	require.NoError(t, db.SaveSnapshot(ctx, "evt-1", ledger, at))

	got, fetchedAt, ok, err := db.LoadSnapshot(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, fetchedAt)
	assert.True(t, ledger.TotalPool().Equal(got.TotalPool()))
	assert.True(t, decimal.RequireFromString("700.25").Equal(got.Bucket(domain.SideNo)))
}

func TestSQLiteStorage_LoadSnapshotMissing(t *testing.T) {
	db := newStore(t)
	_, _, ok, err := db.LoadSnapshot(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_HistoryOnlyOnChange(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now()

	l1 := domain.NewPoolLedger(map[string]decimal.Decimal{domain.SideYes: decimal.NewFromInt(100)})
	l2 := domain.NewPoolLedger(map[string]decimal.Decimal{domain.SideYes: decimal.NewFromInt(150)})

	require.NoError(t, db.SaveSnapshot(ctx, "evt-1", l1, now))
	require.NoError(t, db.SaveSnapshot(ctx, "evt-1", l1, now.Add(5*time.Second)))
	require.NoError(t, db.SaveSnapshot(ctx, "evt-1", l2, now.Add(10*time.Second)))

	points, err := db.PoolHistory(ctx, "evt-1", 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, decimal.NewFromInt(150).Equal(points[0].Ledger.TotalPool()))
	assert.True(t, decimal.NewFromInt(100).Equal(points[1].Ledger.TotalPool()))
	assert.Equal(t, now.UTC().Truncate(time.Millisecond), points[1].At)

	last, err := db.PoolHistory(ctx, "evt-1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.True(t, decimal.NewFromInt(150).Equal(last[0].Ledger.TotalPool()))

	none, err := db.PoolHistory(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, fetchedAt, ok, err := db.LoadSnapshot(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Second).UTC().Truncate(time.Millisecond), fetchedAt)
}
