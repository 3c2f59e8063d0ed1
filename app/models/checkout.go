package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MinPartialAmount is the smallest amount a customer may choose to pay.
var MinPartialAmount = decimal.New(1, -2)

// CheckoutContext is the per-request view of what the customer negotiated
// in their session. It is built at the HTTP edge and passed down explicitly.
type CheckoutContext struct {
	OrderID       string
	PartialAmount decimal.NullDecimal
}

// PartialAmountResult is the outcome of a successful negotiation. When Clear
// is set the caller drops the stored amount, otherwise it stores Amount.
type PartialAmountResult struct {
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Clear     bool
	Message   string
}

// ParseAmountInput reads an amount sent as a JSON number, a numeric string or
// null. present is false for null or an empty value.
func ParseAmountInput(raw json.RawMessage) (amount decimal.Decimal, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false, nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, true, userError(ErrInvalidAmount, "Invalid amount")
		}
	} else {
		s = string(raw)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}

	amount, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, userError(ErrInvalidAmount, "Invalid amount")
	}
	return amount, true, nil
}

// ValidatePartialPaymentAmount checks an amount against the order total.
func (o Order) ValidatePartialPaymentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return userError(ErrInvalidAmount, "Amount must be greater than zero")
	}
	if amount.GreaterThan(o.AmountTotal) {
		return userError(ErrInvalidAmount, "Amount cannot exceed order total")
	}
	return nil
}

// NegotiatePartialAmount validates the amount a customer wants to pay now.
// A nil order or an error result means the session must stay untouched.
func NegotiatePartialAmount(order *Order, raw json.RawMessage) (PartialAmountResult, error) {
	if order == nil {
		return PartialAmountResult{}, userError(ErrNoOrder, "No order found")
	}
	if !order.AmountTotal.IsPositive() {
		return PartialAmountResult{}, userError(ErrInvalidAmount, "No amount to pay for this order")
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return PartialAmountResult{
			Amount:  order.AmountTotal,
			Clear:   true,
			Message: "Full payment selected",
		}, nil
	}

	// only null selects the full amount, a blank string is not a number
	amount, present, err := ParseAmountInput(raw)
	if err != nil {
		return PartialAmountResult{}, err
	}
	if !present {
		return PartialAmountResult{}, userError(ErrInvalidAmount, "Invalid amount")
	}

	if amount.LessThan(MinPartialAmount) {
		return PartialAmountResult{}, userError(ErrInvalidAmount, "Amount must be at least %s", MinPartialAmount.StringFixed(2))
	}
	if amount.GreaterThan(order.AmountTotal) {
		return PartialAmountResult{}, userError(ErrInvalidAmount, "Amount cannot exceed %s", order.formatAmount(order.AmountTotal))
	}
	if err := order.ValidatePartialPaymentAmount(amount); err != nil {
		return PartialAmountResult{}, err
	}

	return PartialAmountResult{
		Amount:    amount,
		Remaining: order.AmountTotal.Sub(amount),
		Message:   "Partial payment amount set",
	}, nil
}

// PartialPaymentAmount is the amount the next transaction should ask for:
// the negotiated partial amount capped to the order total, or the total.
func (o Order) PartialPaymentAmount(ctx CheckoutContext) decimal.Decimal {
	if !ctx.PartialAmount.Valid || !o.AmountTotal.IsPositive() {
		return o.AmountTotal
	}
	if ctx.OrderID != "" && ctx.OrderID != o.ID {
		return o.AmountTotal
	}
	return decimal.Min(ctx.PartialAmount.Decimal, o.AmountTotal)
}

// CheckoutAmount decides the amount of a new checkout transaction. An
// explicit amount is validated as is, otherwise the negotiated amount is
// narrowed to what is still open on the order.
func (o Order) CheckoutAmount(ctx CheckoutContext, explicit decimal.NullDecimal) (decimal.Decimal, error) {
	if !o.AmountRemaining.IsPositive() {
		return decimal.Zero, userError(ErrAlreadyPaid, "This order has already been paid.")
	}

	amount := o.PartialPaymentAmount(ctx)
	if explicit.Valid {
		amount = explicit.Decimal
	} else {
		amount = decimal.Min(amount, o.AmountRemaining)
	}

	if amount.LessThan(MinPartialAmount) {
		return decimal.Zero, userError(ErrInvalidAmount, "Amount must be at least %s", MinPartialAmount.StringFixed(2))
	}
	if amount.GreaterThan(o.AmountRemaining) {
		return decimal.Zero, userError(ErrInvalidAmount, "Amount cannot exceed the remaining amount %s", o.formatAmount(o.AmountRemaining))
	}

	return amount, nil
}

func (o Order) formatAmount(amount decimal.Decimal) string {
	places := o.Currency.DecimalPlaces
	if o.Currency.ID == 0 {
		places = 2
	}
	return amount.StringFixed(places)
}
