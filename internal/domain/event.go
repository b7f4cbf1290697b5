package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType distingue eventos binarios (YES/NO) de eventos multi-outcome.
type EventType string

const (
	EventBinary   EventType = "binary"
	EventMultiple EventType = "multiple"
)

// EventStatus is the lifecycle state reported by the Market API.
type EventStatus string

const (
	StatusOpen     EventStatus = "open"
	StatusClosed   EventStatus = "closed"
	StatusResolved EventStatus = "resolved"
)

// Binary sides.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Outcome es un lado apostable del evento con su probabilidad inicial.
type Outcome struct {
	ID          string
	Label       string
	SeedPercent int // probabilidad estática asignada al crear el evento (0-100)
}

// FinalOdds is the frozen server-side result of a resolved event.
type FinalOdds struct {
	Percent map[string]int
	Odds    map[string]decimal.Decimal
}

// Event es un evento de predicción con su pool parimutuel.
type Event struct {
	ID       string
	Title    string
	Type     EventType
	Status   EventStatus
	ClosesAt time.Time
	Winner   string // solo cuando Status == resolved
	Outcomes []Outcome
	Final    *FinalOdds
}

// IsOpen returns true while the event accepts new bets.
func (e Event) IsOpen() bool {
	return e.Status == StatusOpen
}

// HasOutcome reports whether key is a recognised side for this event.
// Binary events only accept YES/NO, even if the server never sent outcomes.
func (e Event) HasOutcome(key string) bool {
	if e.Type == EventBinary {
		return key == SideYes || key == SideNo
	}
	for _, o := range e.Outcomes {
		if o.ID == key {
			return true
		}
	}
	return false
}

// Keys devuelve los outcomes del evento en el orden del servidor.
func (e Event) Keys() []string {
	if e.Type == EventBinary && len(e.Outcomes) == 0 {
		return []string{SideYes, SideNo}
	}
	keys := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		keys = append(keys, o.ID)
	}
	return keys
}

// SeedPercent devuelve la probabilidad estática del outcome, 0 si no existe.
func (e Event) SeedPercent(key string) int {
	for _, o := range e.Outcomes {
		if o.ID == key {
			return o.SeedPercent
		}
	}
	return 0
}

// Label returns the human label of an outcome, falling back to its key.
func (e Event) Label(key string) string {
	for _, o := range e.Outcomes {
		if o.ID == key && o.Label != "" {
			return o.Label
		}
	}
	return key
}

// TimeToClose returns the remaining time until ClosesAt, or 0 when unknown or past.
func (e Event) TimeToClose(now time.Time) time.Duration {
	if e.ClosesAt.IsZero() {
		return 0
	}
	d := e.ClosesAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
