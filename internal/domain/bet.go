package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bet es una apuesta confirmada. Inmutable una vez creada.
type Bet struct {
	ID       string
	EventID  string
	Key      string // YES/NO u outcome ID
	Amount   decimal.Decimal
	Bettor   string
	PlacedAt time.Time
}

// PlacedBet is the Market API acknowledgement of a bet.
type PlacedBet struct {
	BetID    string
	PlacedAt time.Time
}

// ActivityEntry es una apuesta pública del feed de actividad de un evento.
type ActivityEntry struct {
	BetID    string
	Bettor   string
	Key      string
	Amount   decimal.Decimal
	PlacedAt time.Time
}

// EventDetail is what the Market API returns for fetchEventDetail.
type EventDetail struct {
	Event  Event
	Ledger PoolLedger
}

// PoolsUpdate is the fetchOdds payload. Status, Winner and Final are only set
// when the server includes them.
type PoolsUpdate struct {
	Ledger PoolLedger
	Status EventStatus
	Winner string
	Final  *FinalOdds
}

// ApplyTo copia status/winner/final sobre el evento cacheado.
func (u PoolsUpdate) ApplyTo(e Event) Event {
	if u.Status != "" {
		e.Status = u.Status
	}
	if u.Winner != "" {
		e.Winner = u.Winner
	}
	if u.Final != nil {
		e.Final = u.Final
	}
	return e
}
