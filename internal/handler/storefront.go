package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// TicketEngine is the part of the hold lifecycle engine the public
// storefront uses.
type TicketEngine interface {
	Classify(ctx context.Context) (model.Classification, error)
	GetHoldInfo(ctx context.Context, n model.TicketNumber) (*model.HoldInfo, error)
	PurchaseAndHold(ctx context.Context, tickets []model.TicketNumber, unitPrice decimal.Decimal) (*model.Purchase, error)
	HoldDuration() time.Duration
}

// PriceReader returns the current pricing record and the unit price
// charged for new purchases.
type PriceReader interface {
	Current(ctx context.Context) (model.PricingRecord, error)
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// StorefrontHandler serves the ticket grid, hold countdowns, checkout and
// the current price.
type StorefrontHandler struct {
	Engine  TicketEngine
	Pricing PriceReader
}

// NewStorefrontHandler constructs a StorefrontHandler.  Engine and pricing
// must be non-nil.
func NewStorefrontHandler(engine TicketEngine, pricing PriceReader) *StorefrontHandler {
	if engine == nil || pricing == nil {
		panic("nil dependency passed to NewStorefrontHandler")
	}
	return &StorefrontHandler{Engine: engine, Pricing: pricing}
}

// ListTickets handles GET /v1/tickets.  It returns the sold and held
// ticket numbers plus how many remain available.  Clients poll it to
// colour the grid.
func (h *StorefrontHandler) ListTickets(c echo.Context) error {
	cls, err := h.Engine.Classify(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"sold":            ticketsToInts(cls.Sold),
		"held":            ticketsToInts(cls.Held),
		"available_count": cls.AvailableCount(),
		"min_ticket":      int(model.MinTicketNumber),
		"max_ticket":      int(model.MaxTicketNumber),
	})
}

// GetHold handles GET /v1/tickets/:number/hold.  It responds with
// {"hold": null} when the ticket has no hold.
func (h *StorefrontHandler) GetHold(c echo.Context) error {
	n, ok := ticketParam(c)
	if !ok {
		return invalidTicket(c)
	}
	info, err := h.Engine.GetHoldInfo(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hold": newHoldView(info)})
}

type purchaseReq struct {
	Tickets []int `json:"tickets"`
}

// Purchase handles POST /v1/purchases.  The body is {"tickets": [..]}.  The
// unit price is read from the pricing ledger at this moment and frozen
// into the purchase total.  Responds 201 with the reference id and the
// hold expiry, 409 with the unavailable numbers when any ticket is taken.
func (h *StorefrontHandler) Purchase(c echo.Context) error {
	var body purchaseReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Tickets) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tickets is required"})
	}
	tickets := make([]model.TicketNumber, 0, len(body.Tickets))
	for _, n := range body.Tickets {
		tickets = append(tickets, model.TicketNumber(n))
	}

	ctx := c.Request().Context()
	price, err := h.Pricing.CurrentPrice(ctx)
	if err != nil {
		return writeError(c, err)
	}
	purchase, err := h.Engine.PurchaseAndHold(ctx, tickets, price)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"purchase_id":   purchase.ID,
		"reference_id":  purchase.ReferenceID,
		"tickets":       ticketsToInts(purchase.Tickets),
		"unit_price":    price.StringFixed(2),
		"total_cost":    purchase.TotalCost.StringFixed(2),
		"purchase_date": purchase.PurchaseDate.UTC().Format(time.RFC3339),
		"hold_expiry":   purchase.PurchaseDate.Add(h.Engine.HoldDuration()).UTC().Format(time.RFC3339),
	})
}

// GetPricing handles GET /v1/pricing.
func (h *StorefrontHandler) GetPricing(c echo.Context) error {
	rec, err := h.Pricing.Current(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newPricingView(rec))
}
