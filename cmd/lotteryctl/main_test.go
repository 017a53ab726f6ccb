package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/repository"
)

func TestSeedSamples_isIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	added, conflicts, err := seedSamples(ctx, store, samples, now)
	require.NoError(t, err)
	assert.Equal(t, len(samples), added)
	assert.Zero(t, conflicts)

	added, conflicts, err = seedSamples(ctx, store, samples, now)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, conflicts)
}

func TestSeedSamples_skipsTakenTickets(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// 42 is already paid for, 7 sits in a live checkout and 25 in a
		// lapsed one.
		if err := tx.PutPurchase(ctx, model.Purchase{
			ID:            uuid.NewString(),
			ReferenceID:   "REF-SOLD00042",
			Tickets:       []model.TicketNumber{42},
			TotalCost:     decimal.RequireFromString("5"),
			PurchaseDate:  now.Add(-time.Hour),
			PaymentStatus: map[model.TicketNumber]bool{42: true},
		}); err != nil {
			return err
		}
		if err := tx.PutHold(ctx, model.Hold{
			TicketNumber:  7,
			ReferenceID:   "REF-HELD00007",
			HoldStartTime: now.Add(-time.Minute),
			HoldExpiry:    now.Add(time.Minute),
		}); err != nil {
			return err
		}
		return tx.PutHold(ctx, model.Hold{
			TicketNumber:  25,
			ReferenceID:   "REF-GONE00025",
			HoldStartTime: now.Add(-time.Hour),
			HoldExpiry:    now.Add(-time.Minute),
		})
	}))

	added, conflicts, err := seedSamples(ctx, store, samples, now)
	require.NoError(t, err)
	assert.Equal(t, 2, conflicts)
	assert.Equal(t, len(samples)-2, added)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for ref, want := range map[string]bool{
			"REF-ABC123DEF": false,
			"REF-XYZ789GHI": false,
			"REF-JKL456MNO": true,
			"REF-PQR789STU": true,
		} {
			got, err := tx.ReferenceExists(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, want, got, ref)
		}
		return nil
	}))
}

func TestSeedSamples_laterSampleSeesEarlierSale(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ss := []sample{
		{[]model.TicketNumber{3}, "5", "REF-FIRST0003", map[model.TicketNumber]bool{3: true}},
		{[]model.TicketNumber{3, 4}, "5", "REF-AGAIN0003", map[model.TicketNumber]bool{3: true, 4: true}},
	}
	added, conflicts, err := seedSamples(ctx, store, ss, now)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, conflicts)
}
