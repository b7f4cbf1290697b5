package market

import (
	"log/slog"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/shopspring/decimal"
)

const defaultYesSeed = 50

// mapEvent convierte el DTO a domain.Event. Los binarios siempre llevan outcomes YES/NO.
func mapEvent(r eventDTO) domain.Event {
	e := domain.Event{
		ID:       r.ID,
		Title:    r.Title,
		Type:     domain.EventType(r.Type),
		Status:   domain.EventStatus(r.Status),
		ClosesAt: parseTime(r.ClosesAt),
		Winner:   r.Winner,
	}
	if e.Type == "" {
		e.Type = domain.EventBinary
	}
	if e.Status == "" {
		e.Status = domain.StatusOpen
	}

	if e.Type == domain.EventBinary {
		yes := defaultYesSeed
		if r.InitialYesPercent != nil {
			yes = clampPercent(*r.InitialYesPercent)
		}
		e.Outcomes = []domain.Outcome{
			{ID: domain.SideYes, Label: "Yes", SeedPercent: yes},
			{ID: domain.SideNo, Label: "No", SeedPercent: 100 - yes},
		}
		return e
	}

	for _, o := range r.Outcomes {
		e.Outcomes = append(e.Outcomes, domain.Outcome{
			ID:          o.ID,
			Label:       o.Label,
			SeedPercent: clampPercent(o.InitialPercent),
		})
	}
	return e
}

// mapPools convierte el payload de pools a ledger + odds finales del servidor.
// Pools ausentes cuentan como cero. Final es nil si el servidor no mandó percent/odds.
func mapPools(eventID string, typ domain.EventType, p poolsDTO) (domain.PoolLedger, *domain.FinalOdds) {
	pools := make(map[string]decimal.Decimal)
	final := &domain.FinalOdds{
		Percent: make(map[string]int),
		Odds:    make(map[string]decimal.Decimal),
	}

	if typ == domain.EventBinary || len(p.Outcomes) == 0 {
		setPool(pools, domain.SideYes, p.YesPool)
		setPool(pools, domain.SideNo, p.NoPool)
		setFinal(final, domain.SideYes, p.YesPercent, p.YesOdds)
		setFinal(final, domain.SideNo, p.NoPercent, p.NoOdds)
	}
	for _, o := range p.Outcomes {
		setPool(pools, o.ID, o.Pool)
		setFinal(final, o.ID, o.Percent, o.Odds)
	}

	ledger := domain.NewPoolLedger(pools)
	if p.TotalPool != nil && !p.TotalPool.Equal(ledger.TotalPool()) {
		slog.Debug("server total_pool differs from bucket sum",
			"event_id", eventID,
			"total_pool", p.TotalPool.String(),
			"sum", ledger.TotalPool().String(),
		)
	}

	if len(final.Percent) == 0 && len(final.Odds) == 0 {
		return ledger, nil
	}
	return ledger, final
}

func mapUpdate(eventID string, typ domain.EventType, r oddsResponse) domain.PoolsUpdate {
	ledger, final := mapPools(eventID, typ, r.Pools)
	u := domain.PoolsUpdate{
		Ledger: ledger,
		Status: domain.EventStatus(r.Status),
		Winner: r.Winner,
	}
	if u.Status == domain.StatusResolved {
		u.Final = final
	}
	return u
}

func mapGossip(eventID string, r gossipDTO) domain.GossipMessage {
	return domain.GossipMessage{
		ID:        r.ID,
		EventID:   eventID,
		Author:    domain.Author{ID: r.UserID, Name: r.Username},
		Body:      r.Message,
		ReplyTo:   r.ReplyToID,
		CreatedAt: parseTime(r.CreatedAt),
		State:     domain.DeliverySent,
	}
}

func mapActivity(raw []activityBetDTO) []domain.ActivityEntry {
	out := make([]domain.ActivityEntry, 0, len(raw))
	for _, b := range raw {
		key := b.Side
		if b.OutcomeID != "" {
			key = b.OutcomeID
		}
		bettor := b.Username
		if bettor == "" {
			bettor = b.UserID
		}
		out = append(out, domain.ActivityEntry{
			BetID:    b.ID,
			Bettor:   bettor,
			Key:      key,
			Amount:   b.Amount,
			PlacedAt: parseTime(b.CreatedAt),
		})
	}
	return out
}

func setPool(pools map[string]decimal.Decimal, key string, v *decimal.Decimal) {
	if v != nil {
		pools[key] = *v
	}
}

func setFinal(f *domain.FinalOdds, key string, pct *int, odds *decimal.Decimal) {
	if pct != nil {
		f.Percent[key] = *pct
	}
	if odds != nil {
		f.Odds[key] = *odds
	}
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}

// parseTime prueba los formatos que devuelve la API. Zero time si ninguno encaja.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
