package models

import "time"

// HistoryEntry is one row of the append-only audit trail. Every credit and
// debit appends exactly one entry; entries are never updated or deleted.
type HistoryEntry struct {
	// ID is the autoincrement row ID assigned by the store.
	ID int64

	// UserID is the Discord ID of the affected member.
	UserID string

	// Amount is the signed balance delta: positive for split payouts and
	// other credits, negative for physical coin handoffs.
	Amount int64

	// Reason is the human-readable cause, e.g. the split concept
	// ("Dungeon T8") or "Retiro en mano" for a withdrawal.
	Reason string

	// Date is when the entry was recorded.
	Date time.Time
}
