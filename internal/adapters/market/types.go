package market

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DTOs raw de la API. Solo se usan dentro de este paquete.
// La conversión a entidades de dominio se hace en mapping.go.

// --- Market API ---

// eventDetailResponse es la respuesta de GET /events/{id}.
type eventDetailResponse struct {
	Event eventDTO `json:"event"`
	Pools poolsDTO `json:"pools"`
}

type eventDTO struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Type              string       `json:"type"`
	Status            string       `json:"status"`
	ClosesAt          string       `json:"closes_at"`
	Winner            string       `json:"winner"`
	InitialYesPercent *int         `json:"initial_yes_percent"`
	Outcomes          []outcomeDTO `json:"outcomes"`
}

type outcomeDTO struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	InitialPercent int    `json:"initial_percent"`
}

// poolsDTO: cualquier campo puede faltar.
type poolsDTO struct {
	TotalPool  *decimal.Decimal `json:"total_pool"`
	YesPool    *decimal.Decimal `json:"yes_pool"`
	NoPool     *decimal.Decimal `json:"no_pool"`
	YesPercent *int             `json:"yes_percent"`
	NoPercent  *int             `json:"no_percent"`
	YesOdds    *decimal.Decimal `json:"yes_odds"`
	NoOdds     *decimal.Decimal `json:"no_odds"`
	Outcomes   []outcomePoolDTO `json:"outcomes"`
}

type outcomePoolDTO struct {
	ID      string           `json:"id"`
	Pool    *decimal.Decimal `json:"pool"`
	Percent *int             `json:"percent"`
	Odds    *decimal.Decimal `json:"odds"`
}

// oddsResponse es la respuesta de GET /events/{id}/odds.
type oddsResponse struct {
	Status string   `json:"status"`
	Winner string   `json:"winner"`
	Pools  poolsDTO `json:"pools"`
}

// placeBetRequest es el body de POST /events/{id}/bets. Side para binarios, OutcomeID para multiple.
type placeBetRequest struct {
	Side      string      `json:"side,omitempty"`
	OutcomeID string      `json:"outcome_id,omitempty"`
	Amount    json.Number `json:"amount"` // número JSON, no string
}

type placeBetResponse struct {
	BetID     string `json:"bet_id"`
	CreatedAt string `json:"created_at"`
}

type activityResponse struct {
	Bets []activityBetDTO `json:"bets"`
}

type activityBetDTO struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Username  string          `json:"username"`
	Side      string          `json:"side"`
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"created_at"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// errorResponse es el body de los 4xx.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// --- Social API ---

type gossipResponse struct {
	Messages []gossipDTO `json:"messages"`
}

type gossipDTO struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ReplyToID *int64 `json:"reply_to_id"`
}

type postGossipRequest struct {
	Message   string `json:"message"`
	ReplyToID *int64 `json:"reply_to_id,omitempty"`
}
