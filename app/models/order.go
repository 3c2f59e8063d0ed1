package models

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID           string `gorm:"size:36;not null;uniqueIndex;primary_key"`
	Code         string `gorm:"size:50;index"`
	CompanyID    string `gorm:"size:36;index"`
	PartnerEmail string `gorm:"size:255"`
	CurrencyID   uint   `gorm:"not null"`
	Currency     Currency
	State        string `gorm:"size:20;not null;default:draft;index"`

	AmountTotal decimal.Decimal `gorm:"type:decimal(16,2)"`

	// cached, see RecomputeAmounts
	AmountPaid      decimal.Decimal `gorm:"type:decimal(16,2)"`
	AmountPending   decimal.Decimal `gorm:"type:decimal(16,2)"`
	AmountRemaining decimal.Decimal `gorm:"type:decimal(16,2)"`

	RequirePayment    bool
	PrepaymentPercent decimal.Decimal `gorm:"type:decimal(5,4)"` // 0..1
	AccessToken       string          `gorm:"size:64;index"`

	Transactions []Transaction `gorm:"many2many:order_transactions;"`
	Messages     []OrderMessage

	ConfirmedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt
}

// OrderAmounts is the typed result of aggregating an order's transactions.
type OrderAmounts struct {
	Paid      decimal.Decimal
	Pending   decimal.Decimal
	Remaining decimal.Decimal
}

func (o *Order) BeforeCreate(db *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.AccessToken == "" {
		o.AccessToken = uuid.New().String()
	}
	if o.State == "" {
		o.State = consts.OrderStateDraft
	}
	if o.Code == "" {
		o.Code = generateOrderNumber(db)
	}
	o.AmountRemaining = o.AmountTotal

	return nil
}

func (o *Order) CreateOrder(db *gorm.DB, order *Order) (*Order, error) {
	if order.AmountTotal.IsNegative() {
		return nil, userError(ErrInvalidAmount, "Order total cannot be negative")
	}

	result := db.Create(order)
	if result.Error != nil {
		return nil, result.Error
	}

	return order, nil
}

func (o *Order) FindByID(db *gorm.DB, id string) (*Order, error) {
	var order Order

	err := db.
		Preload("Currency").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transactions.id asc")
		}).
		Preload("Transactions.Provider").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_messages.id asc")
		}).
		Model(&Order{}).Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// FindByAccessToken loads an order for a portal/checkout caller. Every access
// failure is reported as the same error so callers cannot probe order ids.
func (o *Order) FindByAccessToken(db *gorm.DB, id string, token string) (*Order, error) {
	invalid := userError(ErrInvalidAccessToken, "Invalid access token.")
	if id == "" || token == "" {
		return nil, invalid
	}

	order, err := o.FindByID(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(order.AccessToken), []byte(token)) != 1 {
		return nil, invalid
	}

	return order, nil
}

// ComputeAmounts derives paid, pending and remaining amounts from a set of
// transactions. done and authorized count as paid, pending as pending, the
// other states are ignored. Remaining nets out pending amounts so a second
// checkout cannot ask for money that is already on its way.
func ComputeAmounts(total decimal.Decimal, txs []Transaction) OrderAmounts {
	paid := decimal.Zero
	pending := decimal.Zero

	for _, tx := range txs {
		switch tx.State {
		case consts.TxStateDone, consts.TxStateAuthorized:
			paid = paid.Add(tx.Amount)
		case consts.TxStatePending:
			pending = pending.Add(tx.Amount)
		}
	}

	return OrderAmounts{
		Paid:      paid,
		Pending:   pending,
		Remaining: total.Sub(paid).Sub(pending),
	}
}

// Amounts returns the cached aggregate as stored on the order.
func (o Order) Amounts() OrderAmounts {
	return OrderAmounts{
		Paid:      o.AmountPaid,
		Pending:   o.AmountPending,
		Remaining: o.AmountRemaining,
	}
}

// RecomputeAmounts refreshes the cached amount columns of the given orders.
func RecomputeAmounts(db *gorm.DB, orderIDs ...string) error {
	for _, id := range orderIDs {
		var order Order
		err := db.
			Preload("Currency").
			Preload("Transactions").
			Where("id = ?", id).
			First(&order).Error
		if err != nil {
			return fmt.Errorf("recompute order %s: %w", id, err)
		}

		amounts := ComputeAmounts(order.AmountTotal, order.Transactions)
		amounts.Paid = order.Currency.Round(amounts.Paid)
		amounts.Pending = order.Currency.Round(amounts.Pending)
		amounts.Remaining = order.Currency.Round(amounts.Remaining)

		if amounts.Remaining.IsNegative() {
			log.Printf("[payment] order %s is overpaid: total=%s paid=%s pending=%s",
				order.Code, order.AmountTotal, amounts.Paid, amounts.Pending)
		}

		err = db.Model(&Order{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
			"amount_paid":      amounts.Paid,
			"amount_pending":   amounts.Pending,
			"amount_remaining": amounts.Remaining,
		}).Error
		if err != nil {
			return fmt.Errorf("recompute order %s: %w", id, err)
		}
	}

	return nil
}

// ConfirmationAmountReached is the strict rule: the paid amount must cover
// the prepayment percentage of the total.
func (o Order) ConfirmationAmountReached() bool {
	if !o.RequirePayment {
		return true
	}

	percent := o.PrepaymentPercent
	if !percent.IsPositive() {
		return o.AmountPaid.IsPositive()
	}
	if percent.GreaterThan(decimal.NewFromInt(1)) {
		percent = decimal.NewFromInt(1)
	}

	threshold := o.Currency.Round(o.AmountTotal.Mul(percent))
	return o.AmountPaid.GreaterThanOrEqual(threshold)
}

// IsConfirmable reports whether the order may move to sale. With the
// any_transaction policy a single positive transaction that is neither
// cancelled nor failed is enough, even while it is still pending.
func (o Order) IsConfirmable(policy string) bool {
	if policy == consts.ConfirmPolicyPrepayment {
		return o.ConfirmationAmountReached()
	}

	for _, tx := range o.Transactions {
		if tx.Amount.IsPositive() && tx.State != consts.TxStateCancel && tx.State != consts.TxStateError {
			return true
		}
	}

	return o.AmountPaid.IsPositive()
}

func (o Order) IsConfirmableState() bool {
	return o.State == consts.OrderStateDraft || o.State == consts.OrderStateSent
}

// IsPayableState is true for quotations and confirmed orders. A confirmed
// order keeps accepting payments until nothing remains.
func (o Order) IsPayableState() bool {
	return o.IsConfirmableState() || o.State == consts.OrderStateSale
}

// ActionConfirm moves a quotation to a confirmed sale order.
func (o *Order) ActionConfirm(db *gorm.DB) error {
	if !o.IsConfirmableState() {
		return userError(ErrInvalidOrderState, "Order %s cannot be confirmed in state %s", o.Code, o.State)
	}

	now := time.Now()
	o.State = consts.OrderStateSale
	o.ConfirmedAt = sql.NullTime{Time: now, Valid: true}

	return db.Model(&Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"state":        o.State,
		"confirmed_at": o.ConfirmedAt,
		"updated_at":   now,
	}).Error
}

func (o *Order) PendingTransactions() []Transaction {
	var out []Transaction
	for _, tx := range o.Transactions {
		if tx.State == consts.TxStatePending {
			out = append(out, tx)
		}
	}
	return out
}

func generateOrderNumber(db *gorm.DB) string {
	now := time.Now()
	dateCode := "/ORDER/" + intToRoman(int(now.Month())) + "/" + strconv.Itoa(now.Year())

	var latest []Order
	number := 1
	err := db.Session(&gorm.Session{NewDB: true}).Unscoped().
		Model(&Order{}).
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error
	if err == nil && len(latest) > 0 {
		n, convErr := strconv.Atoi(strings.Split(latest[0].Code, "/")[0])
		if convErr == nil {
			number = n + 1
		}
	}

	return strconv.Itoa(number) + dateCode
}

func intToRoman(num int) string {
	values := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	symbols := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}

	var roman strings.Builder
	for i := 0; num > 0; i++ {
		for num >= values[i] {
			roman.WriteString(symbols[i])
			num -= values[i]
		}
	}
	return roman.String()
}
