package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUpdatedBy is recorded when a price change does not name its author.
const DefaultUpdatedBy = "system"

// DefaultTicketPrice applies while no price has ever been set.
var DefaultTicketPrice = decimal.RequireFromString("5.00")

// PricingRecord is one entry of the pricing ledger.  The newest entry is
// the current unit price.
type PricingRecord struct {
	Price       decimal.Decimal `json:"price"`        // ticket_pricing.price
	LastUpdated time.Time       `json:"last_updated"` // ticket_pricing.last_updated
	UpdatedBy   string          `json:"updated_by"`   // ticket_pricing.updated_by
}
