package models

import (
	"context"
	"fmt"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegisterPaymentEntry is what an operator fills in to record a payment
// received outside the shop (bank transfer, cash at the counter). It lives
// for one request only; its side effect is a settled transaction.
type RegisterPaymentEntry struct {
	OrderID              string          `json:"order_id"`
	Amount               decimal.Decimal `json:"amount"`
	CurrencyID           uint            `json:"currency_id"`
	PaymentDate          time.Time       `json:"payment_date"`
	PaymentReference     string          `json:"payment_reference"`
	Note                 string          `json:"note"`
	PendingTransactionID *uint           `json:"pending_transaction_id,omitempty"`
	Author               string          `json:"-"`
}

// NewRegisterPaymentEntry prefills an entry for the order: the open amount,
// or the amount of the transfer still waiting for confirmation.
func NewRegisterPaymentEntry(order *Order) RegisterPaymentEntry {
	entry := RegisterPaymentEntry{
		OrderID:     order.ID,
		Amount:      order.AmountRemaining,
		CurrencyID:  order.CurrencyID,
		PaymentDate: time.Now().Truncate(24 * time.Hour),
	}

	if pending := order.PendingTransactions(); len(pending) > 0 {
		id := pending[0].ID
		entry.PendingTransactionID = &id
		entry.Amount = pending[0].Amount
	}

	return entry
}

// ActionRegisterPayment records the payment described by entry. When the
// entry points at a pending transaction of the order that transaction is
// amended and settled in place, otherwise a new offline transaction is
// created and settled. Both run in one database transaction and the
// settlement events are published after it committed.
func ActionRegisterPayment(ctx context.Context, db *gorm.DB, entry RegisterPaymentEntry, lc Lifecycle) (*Transaction, error) {
	if !entry.Amount.IsPositive() {
		return nil, userError(ErrInvalidAmount, "Payment amount must be greater than zero.")
	}

	var settled *Transaction
	err := lc.inTransaction(ctx, db, func(tx *gorm.DB, lc Lifecycle) error {
		if err := LockOrder(tx, entry.OrderID); err != nil {
			return err
		}

		orderModel := Order{}
		order, err := orderModel.FindByID(tx, entry.OrderID)
		if err != nil {
			return err
		}
		if !order.IsPayableState() {
			return userError(ErrInvalidOrderState, "This order can no longer be paid.")
		}

		if entry.PendingTransactionID != nil {
			settled, err = settlePendingTransaction(ctx, tx, order, entry, lc)
		} else {
			settled, err = createOfflineTransaction(ctx, tx, order, entry, lc)
		}
		if err != nil {
			return err
		}

		if entry.Note != "" {
			currency := order.Currency.Name
			body := fmt.Sprintf("Payment registered: %s %s - %s", entry.Amount.StringFixed(order.Currency.DecimalPlaces), currency, entry.Note)
			if _, err := order.PostMessage(tx, entry.Author, body); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return settled, nil
}

func settlePendingTransaction(ctx context.Context, db *gorm.DB, order *Order, entry RegisterPaymentEntry, lc Lifecycle) (*Transaction, error) {
	var pending *Transaction
	for i := range order.Transactions {
		if order.Transactions[i].ID == *entry.PendingTransactionID {
			pending = &order.Transactions[i]
			break
		}
	}
	if pending == nil || pending.State != consts.TxStatePending {
		return nil, userError(ErrInvalidTxState, "The selected transaction is no longer waiting for payment.")
	}

	// the pending amount is already excluded from the remaining amount
	limit := order.AmountRemaining.Add(pending.Amount)
	if entry.Amount.GreaterThan(limit) {
		return nil, userError(ErrInvalidAmount, "Payment amount cannot exceed the remaining amount.")
	}

	pending.Orders = []Order{{ID: order.ID}}
	if err := pending.UpdateAmount(db, entry.Amount); err != nil {
		return nil, err
	}
	if err := pending.ConfirmPending(ctx, db, lc, "Payment registered manually"); err != nil {
		return nil, err
	}

	return pending, nil
}

func createOfflineTransaction(ctx context.Context, db *gorm.DB, order *Order, entry RegisterPaymentEntry, lc Lifecycle) (*Transaction, error) {
	if entry.Amount.GreaterThan(order.AmountRemaining) {
		return nil, userError(ErrInvalidAmount, "Payment amount cannot exceed the remaining amount.")
	}

	provider, err := FindOfflineProvider(db, order.CompanyID)
	if err != nil {
		return nil, err
	}

	currencyID := entry.CurrencyID
	if currencyID == 0 {
		currencyID = order.CurrencyID
	}

	reference := entry.PaymentReference
	if reference == "" {
		reference = fmt.Sprintf("%s-%s", order.Code, time.Now().Format("20060102150405"))
	}
	reference, err = uniqueReference(db, reference)
	if err != nil {
		return nil, err
	}

	tx, err := CreateTransaction(db, &Transaction{
		Reference:    reference,
		ProviderID:   provider.ID,
		Amount:       entry.Amount,
		CurrencyID:   currencyID,
		PartnerEmail: order.PartnerEmail,
		Operation:    consts.TxOperationOffline,
	}, order)
	if err != nil {
		return nil, err
	}

	if _, err := tx.SetDone(db, "Payment registered manually"); err != nil {
		return nil, err
	}
	if err := tx.PostProcessAfterDone(ctx, db, lc); err != nil {
		return nil, err
	}

	return tx, nil
}

// uniqueReference appends -1, -2, ... until the reference is free.
func uniqueReference(db *gorm.DB, reference string) (string, error) {
	candidate := reference
	for i := 1; ; i++ {
		var count int64
		if err := db.Model(&Transaction{}).Where("reference = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", reference, i)
	}
}
