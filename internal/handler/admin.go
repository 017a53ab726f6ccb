package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/middleware"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/service"
	"github.com/iliyamo/lottery-storefront/internal/utils"
)

// AdminEngine is the part of the hold lifecycle engine behind the admin
// dashboard.
type AdminEngine interface {
	ConfirmPayment(ctx context.Context, n model.TicketNumber) (*service.ConfirmResult, error)
	ReleaseTicket(ctx context.Context, n model.TicketNumber) (bool, error)
	CleanupExpiredHolds(ctx context.Context) (int, error)
	ResetAll(ctx context.Context) error
	ListPurchases(ctx context.Context) ([]model.Purchase, error)
	TicketInfo(ctx context.Context, n model.TicketNumber) (*model.TicketInfo, error)
	SearchTickets(ctx context.Context, query string) ([]model.TicketInfo, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// PricingAdmin manages the pricing ledger.
type PricingAdmin interface {
	Current(ctx context.Context) (model.PricingRecord, error)
	SetPrice(ctx context.Context, price decimal.Decimal, updatedBy string) (model.PricingRecord, error)
	History(ctx context.Context, limit int) ([]model.PricingRecord, error)
	Reset(ctx context.Context) error
}

// SessionIssuer authenticates the shared admin passphrase.
type SessionIssuer interface {
	Authenticate(password string) (utils.AccessToken, error)
	Refresh(subject string) (utils.AccessToken, error)
	TTL() time.Duration
}

// AdminHandler bundles the dependencies of the admin endpoints.  All
// methods except Login assume JWTAuth and RequireRole("ADMIN") already
// ran.  Invalidate, when set, is called after every price change so the
// cached pricing response is dropped.
type AdminHandler struct {
	Engine     AdminEngine
	Pricing    PricingAdmin
	Sessions   SessionIssuer
	Invalidate func(ctx context.Context)
}

// NewAdminHandler constructs an AdminHandler.  Engine, pricing and
// sessions must be non-nil.
func NewAdminHandler(engine AdminEngine, pricing PricingAdmin, sessions SessionIssuer, invalidate func(ctx context.Context)) *AdminHandler {
	if engine == nil || pricing == nil || sessions == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: engine, Pricing: pricing, Sessions: sessions, Invalidate: invalidate}
}

func (h *AdminHandler) invalidate(ctx context.Context) {
	if h.Invalidate != nil {
		h.Invalidate(ctx)
	}
}

type loginReq struct {
	Password string `json:"password"`
}

func tokenResponse(tok utils.AccessToken) echo.Map {
	return echo.Map{
		"access_token": tok.Token,
		"token_type":   "Bearer",
		"expires_at":   tok.Exp,
	}
}

// Login handles POST /v1/admin/login with {"password": "..."}.
func (h *AdminHandler) Login(c echo.Context) error {
	var body loginReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	tok, err := h.Sessions.Authenticate(body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPassword) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, tokenResponse(tok))
}

// RefreshSession handles POST /v1/admin/session/refresh.  Each call
// extends the session by another full lifetime, so an admin who stays
// active is never logged out.
func (h *AdminHandler) RefreshSession(c echo.Context) error {
	tok, err := h.Sessions.Refresh(middleware.Subject(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, tokenResponse(tok))
}

// Session handles GET /v1/admin/session.  It reports who the token belongs
// to and when it expires so the dashboard can show a countdown and refresh
// in time.  There is no server-side logout: a session ends when the client
// discards its token or the token expires.
func (h *AdminHandler) Session(c echo.Context) error {
	exp, _ := c.Get("token_exp").(time.Time)
	remaining := time.Until(exp)
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subject":             middleware.Subject(c),
		"role":                c.Get("role"),
		"expires_at":          exp,
		"remaining_seconds":   int64(remaining / time.Second),
		"session_ttl_seconds": int64(h.Sessions.TTL() / time.Second),
	})
}

// ConfirmTicket handles POST /v1/admin/tickets/:number/confirm.
func (h *AdminHandler) ConfirmTicket(c echo.Context) error {
	n, ok := ticketParam(c)
	if !ok {
		return invalidTicket(c)
	}
	ctx := c.Request().Context()
	res, err := h.Engine.ConfirmPayment(ctx, n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_number": int(res.TicketNumber),
		"purchase_id":   res.PurchaseID,
		"reference_id":  res.ReferenceID,
		"status":        model.StatusSold,
	})
}

// ReleaseTicket handles POST /v1/admin/tickets/:number/release.  It
// always succeeds; "released" tells whether a hold was actually removed.
func (h *AdminHandler) ReleaseTicket(c echo.Context) error {
	n, ok := ticketParam(c)
	if !ok {
		return invalidTicket(c)
	}
	released, err := h.Engine.ReleaseTicket(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket_number": int(n), "released": released})
}

// GetTicket handles GET /v1/admin/tickets/:number.
func (h *AdminHandler) GetTicket(c echo.Context) error {
	n, ok := ticketParam(c)
	if !ok {
		return invalidTicket(c)
	}
	info, err := h.Engine.TicketInfo(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newTicketInfoView(*info))
}

// SearchTickets handles GET /v1/admin/tickets?search=.  Only digits are
// accepted in the search term.
func (h *AdminHandler) SearchTickets(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("search"))
	for _, r := range q {
		if r < '0' || r > '9' {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "search must contain digits only"})
		}
	}
	infos, err := h.Engine.SearchTickets(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]ticketInfoView, 0, len(infos))
	for _, info := range infos {
		out = append(out, newTicketInfoView(info))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out, "count": len(out)})
}

// CleanupHolds handles POST /v1/admin/holds/cleanup.
func (h *AdminHandler) CleanupHolds(c echo.Context) error {
	n, err := h.Engine.CleanupExpiredHolds(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": n})
}

// Reset handles POST /v1/admin/reset.  It deletes every purchase and hold;
// pricing is kept.
func (h *AdminHandler) Reset(c echo.Context) error {
	if err := h.Engine.ResetAll(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": true})
}

// ListPurchases handles GET /v1/admin/purchases, newest first.
func (h *AdminHandler) ListPurchases(c echo.Context) error {
	purchases, err := h.Engine.ListPurchases(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]purchaseView, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, newPurchaseView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"purchases": out, "count": len(out)})
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.Engine.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type setPriceReq struct {
	Price     decimal.Decimal `json:"price"`
	UpdatedBy string          `json:"updated_by"`
}

// SetPrice handles PUT /v1/admin/pricing with {"price": "7.50"}.  The
// price may be sent as a JSON string or number.
func (h *AdminHandler) SetPrice(c echo.Context) error {
	var body setPriceReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	updatedBy := body.UpdatedBy
	if updatedBy == "" {
		updatedBy = middleware.Subject(c)
	}
	ctx := c.Request().Context()
	rec, err := h.Pricing.SetPrice(ctx, body.Price, updatedBy)
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusOK, newPricingView(rec))
}

// PricingHistory handles GET /v1/admin/pricing/history?limit=N.
func (h *AdminHandler) PricingHistory(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	recs, err := h.Pricing.History(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]pricingView, 0, len(recs))
	for _, r := range recs {
		out = append(out, newPricingView(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"history": out})
}

// ResetPricing handles DELETE /v1/admin/pricing.  The default price applies
// afterwards.
func (h *AdminHandler) ResetPricing(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Pricing.Reset(ctx); err != nil {
		return writeError(c, err)
	}
	h.invalidate(ctx)
	rec, err := h.Pricing.Current(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newPricingView(rec))
}
