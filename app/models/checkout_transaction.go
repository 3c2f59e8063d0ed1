package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CheckoutTransactionRequest is what the payment form posts once the
// customer picked a provider.
type CheckoutTransactionRequest struct {
	ProviderID uint
	Amount     decimal.NullDecimal
	Flow       string // redirect, direct
}

// CreateCheckoutTransaction opens a payment for an order the caller already
// proved access to. The order row is locked without waiting, so a double
// submit fails fast instead of creating two payments.
func CreateCheckoutTransaction(db *gorm.DB, orderID string, req CheckoutTransactionRequest, checkout CheckoutContext) (*Transaction, error) {
	providerModel := Provider{}
	provider, err := providerModel.FindByID(db, req.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userError(ErrInvalidProvider, "Invalid payment provider.")
		}
		return nil, err
	}

	var created *Transaction
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := LockOrder(tx, orderID); err != nil {
			return err
		}

		orderModel := Order{}
		order, err := orderModel.FindByID(tx, orderID)
		if err != nil {
			return err
		}

		if !order.IsPayableState() {
			return userError(ErrInvalidOrderState, "This order can no longer be paid.")
		}
		if !provider.IsEnabled() || (provider.CompanyID != "" && provider.CompanyID != order.CompanyID) {
			return userError(ErrInvalidProvider, "Invalid payment provider.")
		}

		amount, err := order.CheckoutAmount(checkout, req.Amount)
		if err != nil {
			return err
		}

		reference, err := uniqueReference(tx, fmt.Sprintf("%s-%d", order.Code, len(order.Transactions)+1))
		if err != nil {
			return err
		}

		operation := consts.TxOperationOnlineRedirect
		if req.Flow == "direct" {
			operation = consts.TxOperationOnlineDirect
		}

		created, err = CreateTransaction(tx, &Transaction{
			Reference:    reference,
			ProviderID:   provider.ID,
			Amount:       amount,
			CurrencyID:   order.CurrencyID,
			PartnerEmail: order.PartnerEmail,
			Operation:    operation,
		}, order)
		if err != nil {
			return err
		}
		created.Provider = *provider
		created.Currency = order.Currency

		values := processingValues(created, provider, order)
		raw, err := json.Marshal(values)
		if err != nil {
			return err
		}
		created.ProcessingValues = datatypes.JSON(raw)
		if err := tx.Model(&Transaction{}).Where("id = ?", created.ID).Update("processing_values", created.ProcessingValues).Error; err != nil {
			return err
		}

		// bank transfers wait for the money, the customer gets the instructions
		if provider.Code == consts.ProviderCodeWireTransfer {
			if _, err := created.SetPending(tx, provider.PendingMessage); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func processingValues(tx *Transaction, provider *Provider, order *Order) map[string]interface{} {
	values := map[string]interface{}{
		"provider_id":   provider.ID,
		"provider_code": provider.Code,
		"reference":     tx.Reference,
		"amount":        tx.Amount.InexactFloat64(),
		"currency":      order.Currency.Name,
		"partner_email": order.PartnerEmail,
		"redirect_url":  "/shop/payment/status?reference=" + tx.Reference,
	}

	if provider.Code == consts.ProviderCodeWireTransfer {
		values["pending_message"] = provider.PendingMessage
	} else {
		values["flow"] = tx.Operation
	}

	return values
}
