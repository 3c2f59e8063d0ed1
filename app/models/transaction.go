package models

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/events"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction is one payment attempt or settlement against one or more orders.
type Transaction struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Reference        string `gorm:"size:100;not null;uniqueIndex"`
	ProviderID       uint   `gorm:"not null;index"`
	Provider         Provider
	Amount           decimal.Decimal `gorm:"type:decimal(16,2)"`
	CurrencyID       uint            `gorm:"not null"`
	Currency         Currency
	PartnerEmail     string `gorm:"size:255"`
	State            string `gorm:"size:20;not null;default:draft;index"`
	StateMessage     string `gorm:"type:text"`
	Operation        string `gorm:"size:30"`
	ProcessingValues datatypes.JSON
	Orders           []Order `gorm:"many2many:order_transactions;"`
	IsPostProcessed  bool
	LastStateChange  sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Lifecycle carries what a settled transaction needs to finish its job.
type Lifecycle struct {
	ConfirmPolicy string
	Publisher     events.Publisher

	outbox *outbox
}

type outbox struct {
	events []events.Event
	topics []string
}

// deferred returns a copy of l that queues events until flush is called.
// Used around database transactions so nothing leaves before the commit.
func (l Lifecycle) deferred() Lifecycle {
	l.outbox = &outbox{}
	return l
}

// flush publishes the queued events. Call it once the transaction committed.
func (l Lifecycle) flush(ctx context.Context) {
	if l.outbox == nil {
		return
	}
	queued := *l.outbox
	l.outbox.events, l.outbox.topics = nil, nil
	for i, event := range queued.events {
		l.send(ctx, queued.topics[i], event)
	}
}

// discard drops the queued events of a rolled back transaction.
func (l Lifecycle) discard() {
	if l.outbox == nil {
		return
	}
	if n := len(l.outbox.events); n > 0 {
		log.Printf("[payment] dropping %d event(s) of a rolled back transaction", n)
	}
	l.outbox.events, l.outbox.topics = nil, nil
}

func (l Lifecycle) publish(ctx context.Context, topic string, data interface{}) {
	event := events.NewEvent(topic, data)
	if l.outbox != nil {
		l.outbox.events = append(l.outbox.events, event)
		l.outbox.topics = append(l.outbox.topics, topic)
		return
	}
	l.send(ctx, topic, event)
}

func (l Lifecycle) send(ctx context.Context, topic string, event events.Event) {
	if l.Publisher == nil {
		return
	}
	if err := l.Publisher.Publish(ctx, topic, event); err != nil {
		log.Printf("[payment] publish %s: %v", topic, err)
	}
}

// inTransaction runs fn in a database transaction and publishes the events it
// produced only when the transaction committed.
func (l Lifecycle) inTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB, lc Lifecycle) error) error {
	lc := l.deferred()
	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(tx, lc)
	})
	if err != nil {
		lc.discard()
		return err
	}
	lc.flush(ctx)
	return nil
}

// allowed source states per target state
var txTransitions = map[string][]string{
	consts.TxStatePending:    {consts.TxStateDraft},
	consts.TxStateAuthorized: {consts.TxStateDraft, consts.TxStatePending},
	consts.TxStateDone:       {consts.TxStateDraft, consts.TxStatePending, consts.TxStateAuthorized, consts.TxStateError},
	consts.TxStateCancel:     {consts.TxStateDraft, consts.TxStatePending, consts.TxStateAuthorized},
	consts.TxStateError:      {consts.TxStateDraft, consts.TxStatePending, consts.TxStateAuthorized},
}

func (t Transaction) CanTransitionTo(state string) bool {
	for _, from := range txTransitions[state] {
		if t.State == from {
			return true
		}
	}
	return false
}

// CreateTransaction stores a new draft transaction linked to the given orders
// and refreshes their amounts.
func CreateTransaction(db *gorm.DB, tx *Transaction, orders ...*Order) (*Transaction, error) {
	if tx.State == "" {
		tx.State = consts.TxStateDraft
	}
	if !tx.Amount.IsPositive() {
		return nil, userError(ErrInvalidAmount, "Transaction amount must be greater than zero")
	}

	tx.Orders = nil
	for _, o := range orders {
		tx.Orders = append(tx.Orders, Order{ID: o.ID})
	}

	err := db.Omit("Orders.*").Create(tx).Error
	if err != nil {
		return nil, err
	}

	if err := RecomputeAmounts(db, tx.OrderIDs()...); err != nil {
		return nil, err
	}

	return tx, nil
}

func (t *Transaction) FindByID(db *gorm.DB, id uint) (*Transaction, error) {
	var tx Transaction
	err := db.
		Preload("Provider").
		Preload("Currency").
		Preload("Orders").
		Where("id = ?", id).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (t Transaction) OrderIDs() []string {
	ids := make([]string, 0, len(t.Orders))
	for _, o := range t.Orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func (t *Transaction) loadOrders(db *gorm.DB) error {
	if len(t.Orders) > 0 {
		return nil
	}
	return db.Model(t).Association("Orders").Find(&t.Orders)
}

// setState applies a state change if the current state allows it and
// recomputes the linked orders. It returns false when the change was ignored.
func (t *Transaction) setState(db *gorm.DB, state string, message string) (bool, error) {
	if !t.CanTransitionTo(state) {
		log.Printf("[payment] transaction %s: ignoring transition %s -> %s", t.Reference, t.State, state)
		return false, nil
	}

	now := time.Now()
	t.State = state
	t.StateMessage = message
	t.LastStateChange = sql.NullTime{Time: now, Valid: true}

	err := db.Model(&Transaction{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"state":             t.State,
		"state_message":     t.StateMessage,
		"last_state_change": t.LastStateChange,
		"updated_at":        now,
	}).Error
	if err != nil {
		return false, fmt.Errorf("transaction %s -> %s: %w", t.Reference, state, err)
	}

	if err := t.loadOrders(db); err != nil {
		return false, err
	}
	if err := RecomputeAmounts(db, t.OrderIDs()...); err != nil {
		return false, err
	}

	return true, nil
}

func (t *Transaction) SetPending(db *gorm.DB, message string) (bool, error) {
	return t.setState(db, consts.TxStatePending, message)
}

func (t *Transaction) SetAuthorized(db *gorm.DB, message string) (bool, error) {
	return t.setState(db, consts.TxStateAuthorized, message)
}

func (t *Transaction) SetDone(db *gorm.DB, message string) (bool, error) {
	return t.setState(db, consts.TxStateDone, message)
}

func (t *Transaction) SetCanceled(db *gorm.DB, message string) (bool, error) {
	return t.setState(db, consts.TxStateCancel, message)
}

func (t *Transaction) SetError(db *gorm.DB, message string) (bool, error) {
	return t.setState(db, consts.TxStateError, message)
}

// UpdateAmount amends the amount of a transaction that is not settled yet.
func (t *Transaction) UpdateAmount(db *gorm.DB, amount decimal.Decimal) error {
	if t.Amount.Equal(amount) {
		return nil
	}
	if t.State == consts.TxStateDone {
		return userError(ErrInvalidTxState, "Transaction %s is already settled", t.Reference)
	}

	t.Amount = amount
	err := db.Model(&Transaction{}).Where("id = ?", t.ID).Update("amount", amount).Error
	if err != nil {
		return err
	}

	if err := t.loadOrders(db); err != nil {
		return err
	}
	return RecomputeAmounts(db, t.OrderIDs()...)
}

// PostProcessAfterDone confirms the orders paid by this transaction and
// tells the rest of the system that money arrived. Invoicing and mails hang
// off the published events.
func (t *Transaction) PostProcessAfterDone(ctx context.Context, db *gorm.DB, lc Lifecycle) error {
	if t.State != consts.TxStateDone || t.IsPostProcessed {
		return nil
	}

	if err := t.loadOrders(db); err != nil {
		return err
	}

	orderModel := Order{}
	for _, ref := range t.Orders {
		order, err := orderModel.FindByID(db, ref.ID)
		if err != nil {
			return err
		}

		if order.IsConfirmableState() && order.IsConfirmable(lc.ConfirmPolicy) {
			if err := order.ActionConfirm(db); err != nil {
				return err
			}
			lc.publish(ctx, consts.TopicOrderConfirmed, map[string]interface{}{
				"order_id":   order.ID,
				"order_code": order.Code,
				"amount":     order.AmountTotal.String(),
				"paid":       order.AmountPaid.String(),
				"remaining":  order.AmountRemaining.String(),
			})
		}
	}

	t.IsPostProcessed = true
	if err := db.Model(&Transaction{}).Where("id = ?", t.ID).Update("is_post_processed", true).Error; err != nil {
		return err
	}

	lc.publish(ctx, consts.TopicPaymentSettled, map[string]interface{}{
		"transaction_id": t.ID,
		"reference":      t.Reference,
		"amount":         t.Amount.String(),
		"operation":      t.Operation,
		"order_ids":      t.OrderIDs(),
	})

	return nil
}

// ConfirmPending settles a pending transaction by hand, e.g. once the bank
// transfer shows up on the statement.
func (t *Transaction) ConfirmPending(ctx context.Context, db *gorm.DB, lc Lifecycle, message string) error {
	if t.State != consts.TxStatePending {
		return userError(ErrInvalidTxState, "Transaction %s is not pending", t.Reference)
	}

	if _, err := t.SetDone(db, message); err != nil {
		return err
	}

	return t.PostProcessAfterDone(ctx, db, lc)
}

// ConfirmPendingTransaction settles a pending transaction under the lock of
// its orders. Events go out after the commit.
func ConfirmPendingTransaction(ctx context.Context, db *gorm.DB, id uint, lc Lifecycle, message string) (*Transaction, error) {
	var confirmed *Transaction
	err := lc.inTransaction(ctx, db, func(dbtx *gorm.DB, lc Lifecycle) error {
		txModel := Transaction{}
		t, err := txModel.FindByID(dbtx, id)
		if err != nil {
			return err
		}
		for _, orderID := range t.OrderIDs() {
			if err := LockOrder(dbtx, orderID); err != nil {
				return err
			}
		}

		// re-read under the lock, a concurrent confirm may have won
		t, err = txModel.FindByID(dbtx, id)
		if err != nil {
			return err
		}
		if err := t.ConfirmPending(ctx, dbtx, lc, message); err != nil {
			return err
		}
		confirmed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}
