package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/shopspring/decimal"
)

// FetchEventDetail devuelve el evento y su ledger actual.
func (c *Client) FetchEventDetail(ctx context.Context, eventID string) (domain.EventDetail, error) {
	var resp eventDetailResponse
	if err := c.get(ctx, "/events/"+url.PathEscape(eventID), &resp); err != nil {
		return domain.EventDetail{}, fmt.Errorf("market.FetchEventDetail %s: %w", eventID, err)
	}

	event := mapEvent(resp.Event)
	if event.ID == "" {
		event.ID = eventID
	}
	ledger, final := mapPools(event.ID, event.Type, resp.Pools)
	if event.Status == domain.StatusResolved {
		event.Final = final
	}
	return domain.EventDetail{Event: event, Ledger: ledger}, nil
}

// FetchOdds devuelve solo los pools. El tipo del evento se infiere del payload.
func (c *Client) FetchOdds(ctx context.Context, eventID string) (domain.PoolsUpdate, error) {
	var resp oddsResponse
	if err := c.get(ctx, "/events/"+url.PathEscape(eventID)+"/odds", &resp); err != nil {
		return domain.PoolsUpdate{}, fmt.Errorf("market.FetchOdds %s: %w", eventID, err)
	}
	return mapUpdate(eventID, "", resp), nil
}

// PlaceBet hace commit de la apuesta. Sin retries: un POST repetido podría apostar dos veces.
func (c *Client) PlaceBet(ctx context.Context, eventID, key string, amount decimal.Decimal) (domain.PlacedBet, error) {
	body := placeBetRequest{Amount: json.Number(amount.String())}
	if key == domain.SideYes || key == domain.SideNo {
		body.Side = key
	} else {
		body.OutcomeID = key
	}

	var resp placeBetResponse
	if err := c.post(ctx, "/events/"+url.PathEscape(eventID)+"/bets", 0, body, &resp); err != nil {
		return domain.PlacedBet{}, fmt.Errorf("market.PlaceBet %s: %w", eventID, err)
	}

	placed := domain.PlacedBet{BetID: resp.BetID, PlacedAt: parseTime(resp.CreatedAt)}
	if placed.PlacedAt.IsZero() {
		placed.PlacedAt = time.Now().UTC()
	}
	return placed, nil
}

// FetchEventActivity devuelve el feed de apuestas del evento.
func (c *Client) FetchEventActivity(ctx context.Context, eventID string) ([]domain.ActivityEntry, error) {
	var resp activityResponse
	if err := c.get(ctx, "/events/"+url.PathEscape(eventID)+"/activity", &resp); err != nil {
		return nil, fmt.Errorf("market.FetchEventActivity %s: %w", eventID, err)
	}
	return mapActivity(resp.Bets), nil
}

// AvailableBalance implementa ports.BalanceProvider.
func (c *Client) AvailableBalance(ctx context.Context, bettor string) (decimal.Decimal, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/users/"+url.PathEscape(bettor)+"/balance", &resp); err != nil {
		return decimal.Zero, fmt.Errorf("market.AvailableBalance %s: %w", bettor, err)
	}
	return resp.Balance, nil
}
