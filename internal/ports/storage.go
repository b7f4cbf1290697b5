package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// BetJournal persists the bets committed from this client.
type BetJournal interface {
	RecordBet(ctx context.Context, bet domain.Bet) error
	BetsForEvent(ctx context.Context, eventID string) ([]domain.Bet, error)
}

// SnapshotStore guarda el último ledger conocido por evento para arrancar en caliente.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, eventID string, ledger domain.PoolLedger, fetchedAt time.Time) error
	// LoadSnapshot devuelve ok=false si no hay snapshot guardado.
	LoadSnapshot(ctx context.Context, eventID string) (ledger domain.PoolLedger, fetchedAt time.Time, ok bool, err error)
}

// PoolHistory lee los cambios de pools guardados, más recientes primero.
type PoolHistory interface {
	PoolHistory(ctx context.Context, eventID string, limit int) ([]domain.PoolPoint, error)
}
