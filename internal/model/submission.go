package model

// RoundStatus is the outcome of a buy round.
type RoundStatus string

const (
	RoundPending  RoundStatus = "pending"
	RoundExecuted RoundStatus = "executed"
	RoundFailed   RoundStatus = "failed"
)

// Submission is one journal entry for a transaction the bot sent or tried to send.
type Submission struct {
	Node     string      `json:"node"`
	RunID    string      `json:"run_id"`
	Cycle    int         `json:"cycle"`
	Side     string      `json:"side"`
	Round    int         `json:"round"`
	TxHash   string      `json:"tx_hash,omitempty"`
	Gas      string      `json:"gas,omitempty"`
	Status   RoundStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Trigger  string      `json:"trigger,omitempty"`
	Recorded string      `json:"recorded_at"`
}
