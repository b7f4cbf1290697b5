package livesync

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// Current devuelve el evento y el ledger espejo, refrescando (sin forzar) si
// el evento aún no está en caché o la caché es vieja.
func (s *Sync) Current(ctx context.Context, eventID string) (domain.Event, domain.PoolLedger, error) {
	snap, err := s.Refresh(ctx, eventID, false)
	if err != nil {
		return domain.Event{}, domain.PoolLedger{}, err
	}
	return snap.Event, snap.Ledger, nil
}

// ApplyLocalStake suma una apuesta todavía no confirmada al espejo del evento.
// El token devuelto sirve para deshacerla con RevertLocalStake. El siguiente
// fetch del servidor descarta todas las stakes locales.
func (s *Sync) ApplyLocalStake(eventID, key string, amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("livesync.ApplyLocalStake: %w: %s", domain.ErrInvalidStake, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[eventID]
	if !ok || !st.hasEvent {
		return 0, fmt.Errorf("livesync.ApplyLocalStake: event %s not loaded", eventID)
	}
	if st.local == nil {
		st.local = make(map[uint64]localStake)
	}
	st.nextToken++
	st.local[st.nextToken] = localStake{key: key, amount: amount}
	return st.nextToken, nil
}

// RevertLocalStake quita una stake optimista. No hace nada si un fetch ya la descartó.
func (s *Sync) RevertLocalStake(eventID string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[eventID]; ok {
		delete(st.local, token)
	}
}
