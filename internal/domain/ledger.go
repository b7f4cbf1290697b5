package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PoolLedger acumula el stake por outcome de un evento.
// Es un value type: no valida reglas de negocio más allá de que los montos sean positivos.
type PoolLedger struct {
	buckets map[string]decimal.Decimal
	total   decimal.Decimal
}

// PoolPoint es el ledger del servidor en un momento dado.
type PoolPoint struct {
	Ledger PoolLedger
	At     time.Time
}

// NewPoolLedger builds a ledger from server pools. Negative or zero pools are ignored.
func NewPoolLedger(pools map[string]decimal.Decimal) PoolLedger {
	l := PoolLedger{buckets: make(map[string]decimal.Decimal, len(pools))}
	for k, v := range pools {
		if !v.IsPositive() {
			continue
		}
		l.buckets[k] = v
		l.total = l.total.Add(v)
	}
	return l
}

// TotalPool devuelve la suma de todos los buckets (0 para un ledger vacío).
func (l PoolLedger) TotalPool() decimal.Decimal {
	return l.total
}

// Bucket returns the stake accumulated for key. Unknown keys are zero-stake, not errors.
func (l PoolLedger) Bucket(key string) decimal.Decimal {
	return l.buckets[key]
}

// HasLiquidity es la puerta entre odds del pool y odds estáticas del evento.
func (l PoolLedger) HasLiquidity() bool {
	return l.total.IsPositive()
}

// Keys devuelve las keys con stake, ordenadas.
func (l PoolLedger) Keys() []string {
	keys := make([]string, 0, len(l.buckets))
	for k := range l.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyStake increments the bucket for key. It is the only mutator.
func (l *PoolLedger) ApplyStake(key string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("domain.ApplyStake: %s: %w", amount, ErrInvalidStake)
	}
	if l.buckets == nil {
		l.buckets = make(map[string]decimal.Decimal)
	}
	l.buckets[key] = l.buckets[key].Add(amount)
	l.total = l.total.Add(amount)
	return nil
}

// WithStake returns a copy of the ledger with amount applied to key.
func (l PoolLedger) WithStake(key string, amount decimal.Decimal) (PoolLedger, error) {
	c := l.Clone()
	if err := c.ApplyStake(key, amount); err != nil {
		return l, err
	}
	return c, nil
}

// Clone hace una copia profunda del ledger.
func (l PoolLedger) Clone() PoolLedger {
	c := PoolLedger{buckets: make(map[string]decimal.Decimal, len(l.buckets)), total: l.total}
	for k, v := range l.buckets {
		c.buckets[k] = v
	}
	return c
}

// Pools devuelve una copia de los buckets (para persistencia).
func (l PoolLedger) Pools() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.buckets))
	for k, v := range l.buckets {
		out[k] = v
	}
	return out
}

// StakeFromFloat converts a caller-supplied amount. NaN, Inf and non-positive values are rejected.
func StakeFromFloat(amount float64) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return decimal.Zero, fmt.Errorf("domain.StakeFromFloat: %v: %w", amount, ErrInvalidStake)
	}
	return decimal.NewFromFloat(amount), nil
}
