package types

import "time"

type ExchangePhase string

const (
	PhaseDonation ExchangePhase = "donation"
	PhaseExchange ExchangePhase = "exchange"
)

func (p ExchangePhase) Valid() bool {
	return p == PhaseDonation || p == PhaseExchange
}

// ExchangePhaseSetting is the process-wide singleton gating what the public
// site offers students. The admin console is its only writer.
type ExchangePhaseSetting struct {
	Phase       ExchangePhase `json:"phase"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}
