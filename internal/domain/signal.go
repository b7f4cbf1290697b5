package domain

import "time"

// SignalKind identifies an event emitted by the core.
type SignalKind string

const (
	SignalOddsDelta    SignalKind = "odds_delta"
	SignalNotableSwing SignalKind = "notable_swing"
	SignalClosingSoon  SignalKind = "closing_soon"
	SignalGossipState  SignalKind = "gossip_state"
)

// Signal is consumed by UI or notification collaborators.
// Only the fields relevant to Kind are set.
type Signal struct {
	Kind        SignalKind    `json:"kind"`
	EventID     string        `json:"event_id"`
	Key         string        `json:"key,omitempty"`
	Delta       int           `json:"delta,omitempty"`
	MinutesLeft int           `json:"minutes_left,omitempty"`
	LocalID     string        `json:"local_id,omitempty"`
	State       DeliveryState `json:"state,omitempty"`
	At          time.Time     `json:"at"`
	ExpiresAt   time.Time     `json:"expires_at,omitzero"`
}

// Expired reports whether a transient signal (odds delta) is past its lifetime.
func (s Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
