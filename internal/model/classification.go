package model

// Ticket states as reported to clients.
const (
	StatusAvailable = "AVAILABLE"
	StatusHeld      = "HELD"
	StatusSold      = "SOLD"
)

// Classification partitions the ticket universe at one point in time.
// Available tickets are the complement of Sold ∪ Held and are not listed.
type Classification struct {
	Sold []TicketNumber `json:"sold"`
	Held []TicketNumber `json:"held"`
}

// AvailableCount is the number of tickets neither sold nor held.
func (c Classification) AvailableCount() int {
	return TicketUniverseSize - len(c.Sold) - len(c.Held)
}

// Stats summarises the ledger for the admin dashboard.
type Stats struct {
	TotalPurchases int    `json:"total_purchases"`
	TotalRevenue   string `json:"total_revenue"`
	SoldCount      int    `json:"sold_count"`
	HeldCount      int    `json:"held_count"`
	PendingCount   int    `json:"pending_count"`
	AvailableCount int    `json:"available_count"`
}

// TicketInfo describes where a purchased ticket stands in the ledger.
type TicketInfo struct {
	TicketNumber     TicketNumber `json:"ticket_number"`
	ReferenceID      string       `json:"reference_id"`
	PurchaseID       string       `json:"purchase_id"`
	PurchaseDate     string       `json:"purchase_date"`
	PaymentConfirmed bool         `json:"payment_confirmed"`
	Status           string       `json:"status"`
	Hold             *HoldInfo    `json:"hold,omitempty"`
}
