package ledger

import "time"

// Status is the lifecycle state of a transaction record. Terminal statuses
// are never overwritten once reached.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusBroadcast Status = "Broadcast"
	StatusConfirmed Status = "Confirmed"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Record is the durable unit of truth for one accepted intent. Identifier,
// amount, destination and provider are write-once at creation.
type Record struct {
	ID          string    `json:"id"`
	Amount      uint64    `json:"amount_lamports"`
	Destination string    `json:"destination"`
	Provider    string    `json:"provider"`
	Status      Status    `json:"status"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
