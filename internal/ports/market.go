package ports

import (
	"context"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/shopspring/decimal"
)

// MarketAPI es la fuente de verdad remota de eventos, pools y apuestas.
type MarketAPI interface {
	// FetchEventDetail devuelve el evento con sus pools actuales.
	FetchEventDetail(ctx context.Context, eventID string) (domain.EventDetail, error)

	// FetchOdds returns only the pools of the event. Cheaper than FetchEventDetail.
	FetchOdds(ctx context.Context, eventID string) (domain.PoolsUpdate, error)

	// PlaceBet commits a bet server-side. It must not be retried automatically.
	// Business rejections come back as *domain.RemoteRejectedError, transport
	// failures wrap domain.ErrNetwork.
	PlaceBet(ctx context.Context, eventID, key string, amount decimal.Decimal) (domain.PlacedBet, error)

	// FetchEventActivity devuelve el feed público de apuestas del evento.
	FetchEventActivity(ctx context.Context, eventID string) ([]domain.ActivityEntry, error)
}

// BalanceProvider exposes the bettor's available balance.
type BalanceProvider interface {
	AvailableBalance(ctx context.Context, bettor string) (decimal.Decimal, error)
}
