package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/database"
	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/middleware"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/repository"
	"github.com/iliyamo/lottery-storefront/internal/service"
)

type Handler struct {
	stores  *database.Stores
	engine  *service.HoldEngine
	pricing *service.PricingService
}

func NewHandler(ctx context.Context) (*Handler, error) {
	config.LoadDotEnv()
	logging.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	stores, err := database.OpenStores(ctx, config.LoadStorageConfig())
	if err != nil {
		return nil, err
	}
	return &Handler{
		stores:  stores,
		engine:  service.NewHoldEngine(stores.Holds, config.LoadHoldConfig().Duration),
		pricing: service.NewPricingService(stores.Pricing, config.LoadDefaultTicketPrice()),
	}, nil
}

func (h *Handler) Close() error { return h.stores.Close() }

// purgeCachedPricing drops the running servers' cached pricing responses so
// a price set from the command line is visible on the next read.  Without
// Redis there is nothing to purge.
func (h *Handler) purgeCachedPricing(ctx context.Context) {
	rdb := config.NewRedisClient()
	if rdb == nil {
		return
	}
	defer rdb.Close()
	middleware.NewCachePurger(config.LoadCacheConfig(), rdb).Purge(ctx)
}

type sample struct {
	tickets   []model.TicketNumber
	unitPrice string
	reference string
	confirmed map[model.TicketNumber]bool
}

// Demo ledger loaded by the seed command.
var samples = []sample{
	{[]model.TicketNumber{42, 123, 456}, "17.5", "REF-ABC123DEF", map[model.TicketNumber]bool{42: true, 123: false, 456: true}},
	{[]model.TicketNumber{7, 77, 777}, "17.5", "REF-XYZ789GHI", map[model.TicketNumber]bool{7: true, 77: true, 777: false}},
	{[]model.TicketNumber{1, 100, 500, 999}, "22.5", "REF-JKL456MNO", map[model.TicketNumber]bool{1: false, 100: true, 500: true, 999: false}},
	{[]model.TicketNumber{25, 250}, "12.5", "REF-PQR789STU", map[model.TicketNumber]bool{25: true, 250: true}},
}

// Seed appends the demo purchases.  Samples whose reference already exists
// are skipped, so seeding twice is harmless.  So are samples that would
// claim a ticket that is already sold or held by a live checkout.
func (h *Handler) Seed(ctx context.Context) (added, conflicts int, err error) {
	return seedSamples(ctx, h.stores.Holds, samples, time.Now().UTC())
}

func seedSamples(ctx context.Context, store repository.Store, ss []sample, now time.Time) (added, conflicts int, err error) {
	err = store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sold, err := tx.SoldTickets(ctx)
		if err != nil {
			return err
		}
		taken := make(map[model.TicketNumber]bool, len(sold))
		for _, n := range sold {
			taken[n] = true
		}

		for i, s := range ss {
			exists, err := tx.ReferenceExists(ctx, s.reference)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			clash, found, err := claimsTaken(ctx, tx, s.tickets, taken, now)
			if err != nil {
				return err
			}
			if found {
				logging.FromContext(ctx).WithField("reference", s.reference).WithField("ticket", clash).
					Warn("seed sample skipped: ticket already taken")
				conflicts++
				continue
			}
			p := model.Purchase{
				ID:            uuid.NewString(),
				ReferenceID:   s.reference,
				Tickets:       s.tickets,
				TotalCost:     model.TotalCost(len(s.tickets), decimal.RequireFromString(s.unitPrice)),
				PurchaseDate:  now.Add(time.Duration(i-len(ss)) * time.Hour),
				PaymentStatus: s.confirmed,
			}
			if err := tx.PutPurchase(ctx, p); err != nil {
				return err
			}
			for n, paid := range s.confirmed {
				if paid {
					taken[n] = true
				}
			}
			added++
		}
		return nil
	})
	return added, conflicts, err
}

// claimsTaken reports the first ticket that is sold or actively held.
func claimsTaken(ctx context.Context, tx repository.Tx, tickets []model.TicketNumber, taken map[model.TicketNumber]bool, now time.Time) (model.TicketNumber, bool, error) {
	for _, n := range tickets {
		if taken[n] {
			return n, true, nil
		}
		hold, err := tx.GetHold(ctx, n)
		if err != nil {
			return 0, false, err
		}
		if hold != nil && hold.ActiveAt(now) {
			return n, true, nil
		}
	}
	return 0, false, nil
}

func main() {
	app := &cli.App{
		Name:  "lotteryctl",
		Usage: "Maintain the lottery storefront ledger",
		Commands: []*cli.Command{
			{
				Name:  "reset",
				Usage: "delete every hold and purchase",
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.Context)
					if err != nil {
						return err
					}
					defer h.Close()

					if err := h.engine.ResetAll(c.Context); err != nil {
						return err
					}
					fmt.Println("ledger reset")
					return nil
				},
			},
			{
				Name:  "cleanup",
				Usage: "release expired holds",
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.Context)
					if err != nil {
						return err
					}
					defer h.Close()

					n, err := h.engine.CleanupExpiredHolds(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("released %d expired holds\n", n)
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "print ledger statistics",
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.Context)
					if err != nil {
						return err
					}
					defer h.Close()

					st, err := h.engine.Stats(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("purchases\t%d\nrevenue\t%s\nsold\t%d\nheld\t%d\npending\t%d\navailable\t%d\n",
						st.TotalPurchases, st.TotalRevenue, st.SoldCount, st.HeldCount, st.PendingCount, st.AvailableCount)
					return nil
				},
			},
			{
				Name:      "set-price",
				ArgsUsage: "<price>",
				Usage:     "record a new ticket price",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "by", Value: model.DefaultUpdatedBy, Usage: "who made the change"},
				},
				Action: func(c *cli.Context) error {
					price, err := decimal.NewFromString(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid price %q", c.Args().First())
					}
					h, err := NewHandler(c.Context)
					if err != nil {
						return err
					}
					defer h.Close()

					rec, err := h.pricing.SetPrice(c.Context, price, c.String("by"))
					if err != nil {
						return err
					}
					h.purgeCachedPricing(c.Context)
					fmt.Printf("price set to %s by %s\n", rec.Price.StringFixed(2), rec.UpdatedBy)
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "load demo purchases",
				Action: func(c *cli.Context) error {
					h, err := NewHandler(c.Context)
					if err != nil {
						return err
					}
					defer h.Close()

					n, skipped, err := h.Seed(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("seeded %d purchases, skipped %d with taken tickets\n", n, skipped)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
