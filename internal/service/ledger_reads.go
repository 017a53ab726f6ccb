package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/repository"
)

// ListPurchases returns every purchase, newest first.
func (e *HoldEngine) ListPurchases(ctx context.Context) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		purchases, err = tx.ListPurchases(ctx)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, "list_purchases", err)
	}
	sort.SliceStable(purchases, func(i, j int) bool {
		return purchases[i].PurchaseDate.After(purchases[j].PurchaseDate)
	})
	return purchases, nil
}

// TicketInfo describes the purchase ticket n currently belongs to and its
// state.  It fails with *NotFoundError when no purchase contains n.
func (e *HoldEngine) TicketInfo(ctx context.Context, n model.TicketNumber) (*model.TicketInfo, error) {
	if err := n.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	now := e.clock()
	var info model.TicketInfo
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := owningPurchase(ctx, tx, n)
		if err != nil {
			return err
		}
		sold, err := tx.SoldTickets(ctx)
		if err != nil {
			return err
		}
		hold, err := tx.GetHold(ctx, n)
		if err != nil {
			return err
		}
		info = ticketInfo(*p, n, hold, ticketSet(sold), now)
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "ticket_info", err)
	}
	return &info, nil
}

// SearchTickets returns info for every purchased ticket whose decimal
// number contains query, ascending by ticket number.  An empty query
// matches every purchased ticket.
func (e *HoldEngine) SearchTickets(ctx context.Context, query string) ([]model.TicketInfo, error) {
	query = strings.TrimSpace(query)
	now := e.clock()
	var out []model.TicketInfo
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		purchases, err := tx.ListPurchases(ctx)
		if err != nil {
			return err
		}
		sold, err := tx.SoldTickets(ctx)
		if err != nil {
			return err
		}
		holds, err := tx.ListHolds(ctx)
		if err != nil {
			return err
		}
		holdsByTicket := make(map[model.TicketNumber]model.Hold, len(holds))
		for _, h := range holds {
			holdsByTicket[h.TicketNumber] = h
		}
		soldSet := ticketSet(sold)

		// Later purchases overwrite earlier ones unless the earlier one owns
		// the live hold, matching owningPurchase.
		owner := map[model.TicketNumber]model.Purchase{}
		for _, p := range purchases {
			for _, t := range p.Tickets {
				if !strings.Contains(strconv.Itoa(int(t)), query) {
					continue
				}
				if h, ok := holdsByTicket[t]; ok {
					if cur, seen := owner[t]; seen && cur.ReferenceID == h.ReferenceID {
						continue
					}
				}
				owner[t] = p
			}
		}
		for t, p := range owner {
			var hold *model.Hold
			if h, ok := holdsByTicket[t]; ok {
				hold = &h
			}
			out = append(out, ticketInfo(p, t, hold, soldSet, now))
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "search_tickets", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	if out == nil {
		out = []model.TicketInfo{}
	}
	return out, nil
}

// Stats summarises the ledger: purchase count, revenue (sum of total
// costs) and the size of each ticket state.
func (e *HoldEngine) Stats(ctx context.Context) (model.Stats, error) {
	now := e.clock()
	var stats model.Stats
	err := e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		purchases, err := tx.ListPurchases(ctx)
		if err != nil {
			return err
		}
		cls, err := classify(ctx, tx, now)
		if err != nil {
			return err
		}
		revenue := decimal.Zero
		pending := 0
		for _, p := range purchases {
			revenue = revenue.Add(p.TotalCost)
			pending += len(p.Tickets) - len(p.ConfirmedTickets())
		}
		stats = model.Stats{
			TotalPurchases: len(purchases),
			TotalRevenue:   revenue.StringFixed(2),
			SoldCount:      len(cls.Sold),
			HeldCount:      len(cls.Held),
			PendingCount:   pending,
			AvailableCount: cls.AvailableCount(),
		}
		return nil
	})
	if err != nil {
		return model.Stats{}, e.fail(ctx, "stats", err)
	}
	return stats, nil
}

func ticketInfo(p model.Purchase, n model.TicketNumber, hold *model.Hold, sold map[model.TicketNumber]struct{}, now time.Time) model.TicketInfo {
	info := model.TicketInfo{
		TicketNumber:     n,
		ReferenceID:      p.ReferenceID,
		PurchaseID:       p.ID,
		PurchaseDate:     p.PurchaseDate.Format(time.RFC3339),
		PaymentConfirmed: p.Confirmed(n),
		Status:           model.StatusAvailable,
	}
	if hold != nil {
		info.Hold = &model.HoldInfo{Hold: *hold, TimeRemaining: hold.TimeRemaining(now)}
	}
	switch {
	case hasTicket(sold, n):
		info.Status = model.StatusSold
	case hold != nil && hold.ActiveAt(now):
		info.Status = model.StatusHeld
	}
	return info
}

func ticketSet(ts []model.TicketNumber) map[model.TicketNumber]struct{} {
	set := make(map[model.TicketNumber]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}

func hasTicket(set map[model.TicketNumber]struct{}, n model.TicketNumber) bool {
	_, ok := set[n]
	return ok
}
