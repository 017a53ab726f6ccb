package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

// SQLStore implements Store on top of MySQL or PostgreSQL.  Queries are
// written with '?' placeholders and rebound for the driver in use.  Every
// transaction runs at SERIALIZABLE isolation so the conflict check and the
// inserts of a purchase cannot interleave with a competing purchase; the
// primary key on held_tickets.ticket_number is the backstop when they do.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore returns a SQLStore bound to db.  The schema must already
// exist (see database.InitSchema).
func NewSQLStore(db *sqlx.DB) *SQLStore {
	if db == nil {
		panic("repository: nil db")
	}
	return &SQLStore{db: db}
}

// WithTx begins a transaction, hands it to fn and commits when fn returns
// nil.  Any error, including a panic in fn, rolls the transaction back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	committed = true
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

// holdRow mirrors the held_tickets table.
type holdRow struct {
	TicketNumber  int       `db:"ticket_number"`
	ReferenceID   string    `db:"reference_id"`
	HoldStartTime time.Time `db:"hold_start_time"`
	HoldExpiry    time.Time `db:"hold_expiry"`
	IsConfirmed   bool      `db:"is_confirmed"`
}

func (r holdRow) model() model.Hold {
	return model.Hold{
		TicketNumber:  model.TicketNumber(r.TicketNumber),
		ReferenceID:   r.ReferenceID,
		HoldStartTime: r.HoldStartTime.UTC(),
		HoldExpiry:    r.HoldExpiry.UTC(),
		IsConfirmed:   r.IsConfirmed,
	}
}

// purchaseRow mirrors the purchases table.
type purchaseRow struct {
	ID           string          `db:"id"`
	ReferenceID  string          `db:"reference_id"`
	TotalCost    decimal.Decimal `db:"total_cost"`
	PurchaseDate time.Time       `db:"purchase_date"`
}

// purchaseTicketRow mirrors the purchase_tickets table.
type purchaseTicketRow struct {
	PurchaseID       string `db:"purchase_id"`
	TicketNumber     int    `db:"ticket_number"`
	Position         int    `db:"position"`
	PaymentConfirmed bool   `db:"payment_confirmed"`
}

const holdColumns = `ticket_number, reference_id, hold_start_time, hold_expiry, is_confirmed`

func (t *sqlTx) GetHold(ctx context.Context, n model.TicketNumber) (*model.Hold, error) {
	var row holdRow
	q := t.tx.Rebind(`SELECT ` + holdColumns + ` FROM held_tickets WHERE ticket_number = ?`)
	if err := t.tx.GetContext(ctx, &row, q, int(n)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get hold: %w", err)
	}
	h := row.model()
	if err := h.Validate(); err != nil {
		return nil, invalidRecord(err)
	}
	return &h, nil
}

func (t *sqlTx) ListHolds(ctx context.Context) ([]model.Hold, error) {
	var rows []holdRow
	if err := t.tx.SelectContext(ctx, &rows, `SELECT `+holdColumns+` FROM held_tickets ORDER BY ticket_number`); err != nil {
		return nil, fmt.Errorf("could not list holds: %w", err)
	}
	holds := make([]model.Hold, 0, len(rows))
	for _, r := range rows {
		h := r.model()
		if err := h.Validate(); err != nil {
			return nil, invalidRecord(err)
		}
		holds = append(holds, h)
	}
	return holds, nil
}

func (t *sqlTx) PutHold(ctx context.Context, h model.Hold) error {
	if err := h.Validate(); err != nil {
		return invalidRecord(err)
	}
	q := t.tx.Rebind(`INSERT INTO held_tickets (` + holdColumns + `) VALUES (?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, q, int(h.TicketNumber), h.ReferenceID, h.HoldStartTime.UTC(), h.HoldExpiry.UTC(), h.IsConfirmed)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrHoldExists
		}
		return fmt.Errorf("could not insert hold: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteHold(ctx context.Context, n model.TicketNumber) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM held_tickets WHERE ticket_number = ?`), int(n))
	if err != nil {
		return false, fmt.Errorf("could not delete hold: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpiredHolds collects the expired ticket numbers first and then
// deletes exactly those rows, mirroring the select-then-delete shape used
// for seat holds.
func (t *sqlTx) DeleteExpiredHolds(ctx context.Context, now time.Time) ([]model.TicketNumber, error) {
	var numbers []int
	q := t.tx.Rebind(`SELECT ticket_number FROM held_tickets WHERE is_confirmed = ? AND hold_expiry < ? ORDER BY ticket_number`)
	if err := t.tx.SelectContext(ctx, &numbers, q, false, now.UTC()); err != nil {
		return nil, fmt.Errorf("could not find expired holds: %w", err)
	}
	if len(numbers) == 0 {
		return []model.TicketNumber{}, nil
	}
	del, args, err := sqlx.In(`DELETE FROM held_tickets WHERE ticket_number IN (?)`, numbers)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(del), args...); err != nil {
		return nil, fmt.Errorf("could not delete expired holds: %w", err)
	}
	out := make([]model.TicketNumber, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, model.TicketNumber(n))
	}
	return out, nil
}

func (t *sqlTx) ListPurchases(ctx context.Context) ([]model.Purchase, error) {
	var rows []purchaseRow
	if err := t.tx.SelectContext(ctx, &rows, `SELECT id, reference_id, total_cost, purchase_date FROM purchases ORDER BY purchase_date, id`); err != nil {
		return nil, fmt.Errorf("could not list purchases: %w", err)
	}
	return t.attachTickets(ctx, rows)
}

func (t *sqlTx) FindPurchasesByTicket(ctx context.Context, n model.TicketNumber) ([]model.Purchase, error) {
	var rows []purchaseRow
	q := t.tx.Rebind(`SELECT p.id, p.reference_id, p.total_cost, p.purchase_date
		FROM purchases p
		JOIN purchase_tickets pt ON pt.purchase_id = p.id
		WHERE pt.ticket_number = ?
		ORDER BY p.purchase_date, p.id`)
	if err := t.tx.SelectContext(ctx, &rows, q, int(n)); err != nil {
		return nil, fmt.Errorf("could not find purchases for ticket %d: %w", int(n), err)
	}
	return t.attachTickets(ctx, rows)
}

// attachTickets loads the purchase_tickets rows of the given purchases in
// one query and assembles model.Purchase values in the same order.
func (t *sqlTx) attachTickets(ctx context.Context, rows []purchaseRow) ([]model.Purchase, error) {
	if len(rows) == 0 {
		return []model.Purchase{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	q, args, err := sqlx.In(`SELECT purchase_id, ticket_number, position, payment_confirmed
		FROM purchase_tickets WHERE purchase_id IN (?) ORDER BY purchase_id, position`, ids)
	if err != nil {
		return nil, err
	}
	var tickets []purchaseTicketRow
	if err := t.tx.SelectContext(ctx, &tickets, t.tx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("could not load purchase tickets: %w", err)
	}
	byPurchase := make(map[string][]purchaseTicketRow, len(rows))
	for _, pt := range tickets {
		byPurchase[pt.PurchaseID] = append(byPurchase[pt.PurchaseID], pt)
	}

	out := make([]model.Purchase, 0, len(rows))
	for _, r := range rows {
		p := model.Purchase{
			ID:            r.ID,
			ReferenceID:   r.ReferenceID,
			TotalCost:     r.TotalCost,
			PurchaseDate:  r.PurchaseDate,
			PaymentStatus: map[model.TicketNumber]bool{},
		}
		for _, pt := range byPurchase[r.ID] {
			n := model.TicketNumber(pt.TicketNumber)
			p.Tickets = append(p.Tickets, n)
			p.PaymentStatus[n] = pt.PaymentConfirmed
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, invalidRecord(err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *sqlTx) SoldTickets(ctx context.Context) ([]model.TicketNumber, error) {
	var numbers []int
	q := t.tx.Rebind(`SELECT DISTINCT ticket_number FROM purchase_tickets WHERE payment_confirmed = ? ORDER BY ticket_number`)
	if err := t.tx.SelectContext(ctx, &numbers, q, true); err != nil {
		return nil, fmt.Errorf("could not list sold tickets: %w", err)
	}
	out := make([]model.TicketNumber, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, model.TicketNumber(n))
	}
	return out, nil
}

func (t *sqlTx) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var count int
	if err := t.tx.GetContext(ctx, &count, t.tx.Rebind(`SELECT COUNT(*) FROM purchases WHERE reference_id = ?`), ref); err != nil {
		return false, fmt.Errorf("could not check reference: %w", err)
	}
	return count > 0, nil
}

// PutPurchase inserts the purchase header and then all of its tickets in a
// single multi-row INSERT.
func (t *sqlTx) PutPurchase(ctx context.Context, p model.Purchase) error {
	if err := p.Validate(); err != nil {
		return invalidRecord(err)
	}
	_, err := t.tx.ExecContext(ctx,
		t.tx.Rebind(`INSERT INTO purchases (id, reference_id, total_cost, purchase_date) VALUES (?, ?, ?, ?)`),
		p.ID, p.ReferenceID, p.TotalCost.StringFixed(2), p.PurchaseDate.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("could not insert purchase: %w", err)
	}
	if len(p.Tickets) == 0 {
		return nil
	}
	query := `INSERT INTO purchase_tickets (purchase_id, ticket_number, position, payment_confirmed) VALUES `
	args := make([]interface{}, 0, len(p.Tickets)*4)
	for i, n := range p.Tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, p.ID, int(n), i, p.PaymentStatus[n])
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("could not insert purchase tickets: %w", err)
	}
	return nil
}

// SetPaymentStatus flips payment_confirmed to true.  MySQL reports zero
// affected rows when the value is already true, so a zero count is
// followed by an existence check before reporting ErrPurchaseNotFound.
func (t *sqlTx) SetPaymentStatus(ctx context.Context, purchaseID string, n model.TicketNumber) error {
	res, err := t.tx.ExecContext(ctx,
		t.tx.Rebind(`UPDATE purchase_tickets SET payment_confirmed = ? WHERE purchase_id = ? AND ticket_number = ?`),
		true, purchaseID, int(n),
	)
	if err != nil {
		return fmt.Errorf("could not confirm payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var count int
	q := t.tx.Rebind(`SELECT COUNT(*) FROM purchase_tickets WHERE purchase_id = ? AND ticket_number = ?`)
	if err := t.tx.GetContext(ctx, &count, q, purchaseID, int(n)); err != nil {
		return fmt.Errorf("could not confirm payment: %w", err)
	}
	if count == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

func (t *sqlTx) DeleteAll(ctx context.Context) error {
	for _, q := range []string{
		`DELETE FROM held_tickets`,
		`DELETE FROM purchase_tickets`,
		`DELETE FROM purchases`,
	} {
		if _, err := t.tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("could not reset ledger: %w", err)
		}
	}
	return nil
}

// isDuplicateKey recognises unique violations from both supported drivers.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// SQLPricingStore keeps the pricing ledger in the ticket_pricing table.
type SQLPricingStore struct {
	db *sqlx.DB
}

// NewSQLPricingStore returns a pricing store bound to db.
func NewSQLPricingStore(db *sqlx.DB) *SQLPricingStore {
	if db == nil {
		panic("repository: nil db")
	}
	return &SQLPricingStore{db: db}
}

// pricingRow mirrors the ticket_pricing table.
type pricingRow struct {
	ID          int64           `db:"id"`
	Price       decimal.Decimal `db:"price"`
	LastUpdated time.Time       `db:"last_updated"`
	UpdatedBy   string          `db:"updated_by"`
}

func (r pricingRow) model() model.PricingRecord {
	return model.PricingRecord{Price: r.Price, LastUpdated: r.LastUpdated.UTC(), UpdatedBy: r.UpdatedBy}
}

func (s *SQLPricingStore) LatestPrice(ctx context.Context) (*model.PricingRecord, error) {
	var row pricingRow
	err := s.db.GetContext(ctx, &row, `SELECT id, price, last_updated, updated_by FROM ticket_pricing ORDER BY id DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not load price: %w", err)
	}
	rec := row.model()
	return &rec, nil
}

func (s *SQLPricingStore) AppendPrice(ctx context.Context, rec model.PricingRecord) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO ticket_pricing (price, last_updated, updated_by) VALUES (?, ?, ?)`),
		rec.Price.StringFixed(2), rec.LastUpdated.UTC(), rec.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("could not store price: %w", err)
	}
	return nil
}

func (s *SQLPricingStore) PriceHistory(ctx context.Context, limit int) ([]model.PricingRecord, error) {
	q := `SELECT id, price, last_updated, updated_by FROM ticket_pricing ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []pricingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("could not load price history: %w", err)
	}
	out := make([]model.PricingRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *SQLPricingStore) ClearPrices(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ticket_pricing`); err != nil {
		return fmt.Errorf("could not clear prices: %w", err)
	}
	return nil
}
