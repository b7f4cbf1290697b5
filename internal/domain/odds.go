package domain

// odds.go: matemática parimutuel sobre un PoolLedger.
//
// Todas las cantidades son decimal.Decimal. El preview y el snapshot post-commit
// pasan por Compute, así que un preview con stake A y el ledger real después de
// aplicar A devuelven exactamente los mismos percent/odds.
//
// Known rounding slack: percent se redondea por outcome de forma independiente,
// la suma puede ser 99 o 101. No se corrige.

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLiquidityFloor = 100
	lowLiquidityRatio     = "0.10"
)

var hundred = decimal.NewFromInt(100)

// OddsSource is either LiveSource (pool-derived) or StaticSource (seeded probability).
type OddsSource interface {
	oddsSource()
}

// LiveSource carries the side pool S and total pool T used for pool-derived odds.
type LiveSource struct {
	Side  decimal.Decimal
	Total decimal.Decimal
}

// StaticSource carries the event's pre-seeded probability for a side.
type StaticSource struct {
	SeedPercent int
}

func (LiveSource) oddsSource()   {}
func (StaticSource) oddsSource() {}

// OutcomeOdds es el resultado por outcome.
type OutcomeOdds struct {
	Key     string
	Percent int
	Odds    decimal.Decimal
	Source  OddsSource
}

// OddsSnapshot is derived data. It is a display hint, never stored as truth.
type OddsSnapshot struct {
	EventID    string
	Outcomes   []OutcomeOdds
	Total      decimal.Decimal
	Final      bool // valores congelados del servidor (evento resuelto)
	ComputedAt time.Time
}

// Get devuelve los odds de key.
func (s OddsSnapshot) Get(key string) (OutcomeOdds, bool) {
	for _, o := range s.Outcomes {
		if o.Key == key {
			return o, true
		}
	}
	return OutcomeOdds{}, false
}

// Percents returns key → percent.
func (s OddsSnapshot) Percents() map[string]int {
	out := make(map[string]int, len(s.Outcomes))
	for _, o := range s.Outcomes {
		out[o.Key] = o.Percent
	}
	return out
}

// Preview es la proyección de un stake hipotético.
type Preview struct {
	Key           string
	Stake         decimal.Decimal
	NewSideTotal  decimal.Decimal
	NewGrandTotal decimal.Decimal
	YourShare     decimal.Decimal
	Payout        decimal.Decimal
	Profit        decimal.Decimal
	EffectiveOdds decimal.Decimal
	LowLiquidity  bool
	After         OddsSnapshot
}

// Calculator computes percent/odds/payouts from a ledger.
type Calculator struct {
	liquidityFloor decimal.Decimal
	lowRatio       decimal.Decimal
	now            func() time.Time
}

// NewCalculator crea un Calculator. floor <= 0 usa DefaultLiquidityFloor.
func NewCalculator(floor float64) *Calculator {
	f := decimal.NewFromInt(DefaultLiquidityFloor)
	if floor > 0 {
		f = decimal.NewFromFloat(floor)
	}
	return &Calculator{
		liquidityFloor: f,
		lowRatio:       decimal.RequireFromString(lowLiquidityRatio),
		now:            time.Now,
	}
}

// Source picks the odds source for key. No stake anywhere means static seed, always.
func (c *Calculator) Source(event Event, ledger PoolLedger, key string) OddsSource {
	if !ledger.HasLiquidity() {
		return StaticSource{SeedPercent: event.SeedPercent(key)}
	}
	return LiveSource{Side: ledger.Bucket(key), Total: ledger.TotalPool()}
}

// Percent devuelve round(100*S/T) o el seed estático.
func (c *Calculator) Percent(src OddsSource) int {
	switch s := src.(type) {
	case LiveSource:
		if !s.Total.IsPositive() {
			return 0
		}
		return int(hundred.Mul(s.Side).Div(s.Total).Round(0).IntPart())
	case StaticSource:
		return s.SeedPercent
	default:
		return 0
	}
}

// DecimalOdds devuelve T/S. Sin stake en ese lado, cae a 100/seed.
func (c *Calculator) DecimalOdds(event Event, key string, src OddsSource) decimal.Decimal {
	switch s := src.(type) {
	case LiveSource:
		if s.Side.IsPositive() {
			return s.Total.Div(s.Side)
		}
		return staticOdds(event.SeedPercent(key))
	case StaticSource:
		return staticOdds(s.SeedPercent)
	default:
		return staticOdds(0)
	}
}

func staticOdds(seedPercent int) decimal.Decimal {
	den := int64(seedPercent)
	if den < 1 {
		den = 1
	}
	return hundred.Div(decimal.NewFromInt(den))
}

// Compute builds the snapshot for every known key of the event.
// Resolved events with server-supplied final odds return them untouched.
func (c *Calculator) Compute(event Event, ledger PoolLedger) OddsSnapshot {
	snap := OddsSnapshot{
		EventID:    event.ID,
		Total:      ledger.TotalPool(),
		ComputedAt: c.now(),
	}

	if event.Status == StatusResolved && event.Final != nil {
		snap.Final = true
		for _, key := range snapshotKeys(event, ledger) {
			snap.Outcomes = append(snap.Outcomes, OutcomeOdds{
				Key:     key,
				Percent: event.Final.Percent[key],
				Odds:    event.Final.Odds[key],
				Source:  LiveSource{Side: ledger.Bucket(key), Total: ledger.TotalPool()},
			})
		}
		return snap
	}

	for _, key := range snapshotKeys(event, ledger) {
		src := c.Source(event, ledger, key)
		snap.Outcomes = append(snap.Outcomes, OutcomeOdds{
			Key:     key,
			Percent: c.Percent(src),
			Odds:    c.DecimalOdds(event, key, src),
			Source:  src,
		})
	}
	return snap
}

// Preview projects a hypothetical stake on key without touching ledger.
func (c *Calculator) Preview(event Event, ledger PoolLedger, key string, amount decimal.Decimal) (Preview, error) {
	if !event.IsOpen() {
		return Preview{}, fmt.Errorf("domain.Preview: event %s is %s: %w", event.ID, event.Status, ErrEventNotOpen)
	}
	after, err := ledger.WithStake(key, amount)
	if err != nil {
		return Preview{}, fmt.Errorf("domain.Preview: %w", err)
	}

	sidePool := ledger.Bucket(key)
	total := ledger.TotalPool()
	newSide := sidePool.Add(amount)
	newTotal := total.Add(amount)

	return Preview{
		Key:           key,
		Stake:         amount,
		NewSideTotal:  newSide,
		NewGrandTotal: newTotal,
		YourShare:     amount.Div(newSide),
		Payout:        payout(amount, newSide, newTotal),
		Profit:        payout(amount, newSide, newTotal).Sub(amount),
		EffectiveOdds: newTotal.Div(newSide),
		LowLiquidity:  c.isLowLiquidity(total, sidePool, amount),
		After:         c.Compute(event, after),
	}, nil
}

// IsLowLiquidity reports the warning for a stake of amount on key.
func (c *Calculator) IsLowLiquidity(ledger PoolLedger, key string, amount decimal.Decimal) bool {
	return c.isLowLiquidity(ledger.TotalPool(), ledger.Bucket(key), amount)
}

// isLowLiquidity: pool contrario < 10% del stake, o pool total bajo el floor.
func (c *Calculator) isLowLiquidity(total, side, amount decimal.Decimal) bool {
	opposing := total.Sub(side)
	if opposing.LessThan(amount.Mul(c.lowRatio)) {
		return true
	}
	return total.LessThan(c.liquidityFloor)
}

// payout = (A / newSide) * newTotal, evaluado multiplicando primero para que sea exacto.
func payout(stake, newSide, newTotal decimal.Decimal) decimal.Decimal {
	return stake.Mul(newTotal).Div(newSide)
}

// SettlementPayout is the resolution-time payout for a winning stake.
// It uses the same formula as Preview, so a preview taken right before the
// last bet matches settlement exactly.
func SettlementPayout(ledger PoolLedger, winner string, stake decimal.Decimal) (decimal.Decimal, error) {
	if !stake.IsPositive() {
		return decimal.Zero, fmt.Errorf("domain.SettlementPayout: %w", ErrInvalidStake)
	}
	side := ledger.Bucket(winner)
	if side.LessThan(stake) {
		return decimal.Zero, fmt.Errorf("domain.SettlementPayout: stake %s exceeds %s pool %s: %w",
			stake, winner, side, ErrInvalidStake)
	}
	return payout(stake, side, ledger.TotalPool()), nil
}

// OddsDisplay formatea odds con 2 decimales (2.857… → "2.86").
func OddsDisplay(odds decimal.Decimal) string {
	return odds.StringFixed(2)
}

// snapshotKeys: keys del evento en orden, más keys nuevas del ledger (ordenadas).
func snapshotKeys(event Event, ledger PoolLedger) []string {
	keys := event.Keys()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	var extra []string
	for _, k := range ledger.Keys() {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
