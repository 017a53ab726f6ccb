package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// memState is the whole contents of a MemoryStore.  Transactions operate on
// a private copy that replaces the shared state only on commit.
type memState struct {
	holds     map[model.TicketNumber]model.Hold
	purchases []model.Purchase
}

func (s *memState) clone() *memState {
	c := &memState{
		holds:     make(map[model.TicketNumber]model.Hold, len(s.holds)),
		purchases: make([]model.Purchase, 0, len(s.purchases)),
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for _, p := range s.purchases {
		c.purchases = append(c.purchases, p.Clone())
	}
	return c
}

// MemoryStore is an in-process Store.  Transactions are fully serialised
// by a mutex and applied copy-on-write, so a failing transaction leaves no
// trace.  It backs unit tests and the STORAGE_DRIVER=memory mode.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{holds: map[model.TicketNumber]model.Hold{}}}
}

// WithTx runs fn against a snapshot of the store and publishes the
// snapshot when fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type memTx struct {
	state *memState
}

func (t *memTx) GetHold(_ context.Context, n model.TicketNumber) (*model.Hold, error) {
	h, ok := t.state.holds[n]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (t *memTx) ListHolds(_ context.Context) ([]model.Hold, error) {
	out := make([]model.Hold, 0, len(t.state.holds))
	for _, h := range t.state.holds {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out, nil
}

func (t *memTx) PutHold(_ context.Context, h model.Hold) error {
	if err := h.Validate(); err != nil {
		return invalidRecord(err)
	}
	if _, ok := t.state.holds[h.TicketNumber]; ok {
		return ErrHoldExists
	}
	h.HoldStartTime = h.HoldStartTime.UTC()
	h.HoldExpiry = h.HoldExpiry.UTC()
	t.state.holds[h.TicketNumber] = h
	return nil
}

func (t *memTx) DeleteHold(_ context.Context, n model.TicketNumber) (bool, error) {
	if _, ok := t.state.holds[n]; !ok {
		return false, nil
	}
	delete(t.state.holds, n)
	return true, nil
}

func (t *memTx) DeleteExpiredHolds(_ context.Context, now time.Time) ([]model.TicketNumber, error) {
	expired := []model.TicketNumber{}
	for n, h := range t.state.holds {
		if h.ExpiredAt(now) {
			expired = append(expired, n)
		}
	}
	for _, n := range expired {
		delete(t.state.holds, n)
	}
	return model.SortTickets(expired), nil
}

func (t *memTx) ListPurchases(_ context.Context) ([]model.Purchase, error) {
	out := make([]model.Purchase, 0, len(t.state.purchases))
	for _, p := range t.state.purchases {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (t *memTx) FindPurchasesByTicket(_ context.Context, n model.TicketNumber) ([]model.Purchase, error) {
	var out []model.Purchase
	for _, p := range t.state.purchases {
		if p.Contains(n) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (t *memTx) SoldTickets(_ context.Context) ([]model.TicketNumber, error) {
	seen := map[model.TicketNumber]struct{}{}
	sold := []model.TicketNumber{}
	for _, p := range t.state.purchases {
		for _, n := range p.ConfirmedTickets() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			sold = append(sold, n)
		}
	}
	return model.SortTickets(sold), nil
}

func (t *memTx) ReferenceExists(_ context.Context, ref string) (bool, error) {
	for _, p := range t.state.purchases {
		if p.ReferenceID == ref {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) PutPurchase(ctx context.Context, p model.Purchase) error {
	if err := p.Validate(); err != nil {
		return invalidRecord(err)
	}
	exists, _ := t.ReferenceExists(ctx, p.ReferenceID)
	if exists {
		return ErrDuplicateReference
	}
	c := p.Clone()
	c.Normalize()
	// Keep the ledger ordered by purchase date even when callers insert
	// records with explicit dates out of order (the seed command does).
	i := sort.Search(len(t.state.purchases), func(i int) bool {
		return t.state.purchases[i].PurchaseDate.After(c.PurchaseDate)
	})
	t.state.purchases = append(t.state.purchases, model.Purchase{})
	copy(t.state.purchases[i+1:], t.state.purchases[i:])
	t.state.purchases[i] = c
	return nil
}

func (t *memTx) SetPaymentStatus(_ context.Context, purchaseID string, n model.TicketNumber) error {
	for i := range t.state.purchases {
		p := &t.state.purchases[i]
		if p.ID != purchaseID {
			continue
		}
		if !p.Contains(n) {
			return ErrPurchaseNotFound
		}
		p.PaymentStatus[n] = true
		return nil
	}
	return ErrPurchaseNotFound
}

func (t *memTx) DeleteAll(_ context.Context) error {
	t.state.holds = map[model.TicketNumber]model.Hold{}
	t.state.purchases = nil
	return nil
}

// MemoryPricingStore keeps the pricing ledger in process memory.
type MemoryPricingStore struct {
	mu      sync.RWMutex
	records []model.PricingRecord
}

// NewMemoryPricingStore returns an empty pricing ledger.
func NewMemoryPricingStore() *MemoryPricingStore { return &MemoryPricingStore{} }

func (s *MemoryPricingStore) LatestPrice(_ context.Context) (*model.PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	rec := s.records[len(s.records)-1]
	return &rec, nil
}

func (s *MemoryPricingStore) AppendPrice(_ context.Context, rec model.PricingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.LastUpdated = rec.LastUpdated.UTC()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryPricingStore) PriceHistory(_ context.Context, limit int) ([]model.PricingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PricingRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryPricingStore) ClearPrices(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
