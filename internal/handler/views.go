package handler

import (
	"strconv"
	"time"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// holdView is the JSON shape of a hold with its countdown.
type holdView struct {
	TicketNumber    int    `json:"ticket_number"`
	ReferenceID     string `json:"reference_id"`
	HoldStartTime   string `json:"hold_start_time"`
	HoldExpiry      string `json:"hold_expiry"`
	IsConfirmed     bool   `json:"is_confirmed"`
	TimeRemainingMs int64  `json:"time_remaining_ms"`
}

func newHoldView(info *model.HoldInfo) *holdView {
	if info == nil {
		return nil
	}
	return &holdView{
		TicketNumber:    int(info.TicketNumber),
		ReferenceID:     info.ReferenceID,
		HoldStartTime:   info.HoldStartTime.UTC().Format(time.RFC3339),
		HoldExpiry:      info.HoldExpiry.UTC().Format(time.RFC3339),
		IsConfirmed:     info.IsConfirmed,
		TimeRemainingMs: info.TimeRemainingMillis(),
	}
}

// purchaseView is the JSON shape of a purchase in admin listings.
type purchaseView struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	Tickets       []int           `json:"tickets"`
	TotalCost     string          `json:"total_cost"`
	PurchaseDate  string          `json:"purchase_date"`
	PaymentStatus map[string]bool `json:"payment_status"`
}

func newPurchaseView(p model.Purchase) purchaseView {
	v := purchaseView{
		ID:            p.ID,
		ReferenceID:   p.ReferenceID,
		Tickets:       make([]int, 0, len(p.Tickets)),
		TotalCost:     p.TotalCost.StringFixed(2),
		PurchaseDate:  p.PurchaseDate.UTC().Format(time.RFC3339),
		PaymentStatus: make(map[string]bool, len(p.Tickets)),
	}
	for _, t := range p.Tickets {
		v.Tickets = append(v.Tickets, int(t))
		v.PaymentStatus[strconv.Itoa(int(t))] = p.PaymentStatus[t]
	}
	return v
}

// ticketInfoView is the JSON shape of an admin ticket lookup.
type ticketInfoView struct {
	TicketNumber     int       `json:"ticket_number"`
	ReferenceID      string    `json:"reference_id"`
	PurchaseID       string    `json:"purchase_id"`
	PurchaseDate     string    `json:"purchase_date"`
	PaymentConfirmed bool      `json:"payment_confirmed"`
	Status           string    `json:"status"`
	Hold             *holdView `json:"hold"`
}

func newTicketInfoView(info model.TicketInfo) ticketInfoView {
	return ticketInfoView{
		TicketNumber:     int(info.TicketNumber),
		ReferenceID:      info.ReferenceID,
		PurchaseID:       info.PurchaseID,
		PurchaseDate:     info.PurchaseDate,
		PaymentConfirmed: info.PaymentConfirmed,
		Status:           info.Status,
		Hold:             newHoldView(info.Hold),
	}
}

// pricingView is the JSON shape of a pricing record.  LastUpdated is null
// while the default price applies.
type pricingView struct {
	Price       string  `json:"price"`
	LastUpdated *string `json:"last_updated"`
	UpdatedBy   string  `json:"updated_by"`
}

func newPricingView(rec model.PricingRecord) pricingView {
	v := pricingView{Price: rec.Price.StringFixed(2), UpdatedBy: rec.UpdatedBy}
	if !rec.LastUpdated.IsZero() {
		s := rec.LastUpdated.UTC().Format(time.RFC3339)
		v.LastUpdated = &s
	}
	return v
}

func ticketsToInts(ts []model.TicketNumber) []int {
	out := make([]int, 0, len(ts))
	for _, t := range ts {
		out = append(out, int(t))
	}
	return out
}
