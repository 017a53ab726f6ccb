package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/repository"
)

// PricingService owns the pricing ledger.  The engine only reads the
// current unit price from it when a purchase is made; the price is then
// frozen into the purchase's total cost.
type PricingService struct {
	store        repository.PricingStore
	defaultPrice decimal.Decimal
	now          func() time.Time
}

// NewPricingService returns a service over store.  defaultPrice applies
// while the ledger is empty; a non-positive value falls back to
// model.DefaultTicketPrice.
func NewPricingService(store repository.PricingStore, defaultPrice decimal.Decimal) *PricingService {
	if store == nil {
		panic("service: nil pricing store")
	}
	if !defaultPrice.IsPositive() {
		defaultPrice = model.DefaultTicketPrice
	}
	return &PricingService{store: store, defaultPrice: defaultPrice, now: time.Now}
}

// Current returns the newest pricing record, or a synthetic default record
// when nothing has been stored yet.
func (s *PricingService) Current(ctx context.Context) (model.PricingRecord, error) {
	rec, err := s.store.LatestPrice(ctx)
	if err != nil {
		return model.PricingRecord{}, &StorageError{Op: "current_price", Err: err}
	}
	if rec == nil {
		return model.PricingRecord{Price: s.defaultPrice, UpdatedBy: model.DefaultUpdatedBy}, nil
	}
	return *rec, nil
}

// CurrentPrice returns the unit price used for new purchases.
func (s *PricingService) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	rec, err := s.Current(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return rec.Price, nil
}

// SetPrice appends a new record to the ledger.  Prices are rounded to two
// decimals and must stay positive; an empty updatedBy is recorded as
// model.DefaultUpdatedBy.
func (s *PricingService) SetPrice(ctx context.Context, price decimal.Decimal, updatedBy string) (model.PricingRecord, error) {
	price = price.Round(2)
	if !price.IsPositive() {
		return model.PricingRecord{}, validationf("price must be positive")
	}
	updatedBy = strings.TrimSpace(updatedBy)
	if updatedBy == "" {
		updatedBy = model.DefaultUpdatedBy
	}
	rec := model.PricingRecord{Price: price, LastUpdated: s.now().UTC(), UpdatedBy: updatedBy}
	if err := s.store.AppendPrice(ctx, rec); err != nil {
		return model.PricingRecord{}, &StorageError{Op: "set_price", Err: err}
	}
	logging.FromContext(ctx).
		WithField("price", price.StringFixed(2)).
		WithField("updated_by", updatedBy).
		Info("ticket price updated")
	return rec, nil
}

// History returns up to limit records, newest first.
func (s *PricingService) History(ctx context.Context, limit int) ([]model.PricingRecord, error) {
	recs, err := s.store.PriceHistory(ctx, limit)
	if err != nil {
		return nil, &StorageError{Op: "price_history", Err: err}
	}
	return recs, nil
}

// Reset empties the ledger so the default price applies again.
func (s *PricingService) Reset(ctx context.Context) error {
	if err := s.store.ClearPrices(ctx); err != nil {
		return &StorageError{Op: "reset_pricing", Err: err}
	}
	return nil
}
