package domain

import "time"

// RideEntryRecord is one row of the occupancy event ledger. The stats
// engine never replays records individually; it only consumes the net
// entries/exits aggregate over a reconciliation window.
type RideEntryRecord struct {
	ID        int64
	VisitorID int64
	RideID    int64
	EntryTime time.Time
	EntryGate string
	ExitTime  *time.Time
	ExitGate  *string
	TicketID  *int64
}
