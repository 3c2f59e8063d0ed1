package controllers

import (
	"net/http"

	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/shopspring/decimal"
)

// checkout session keys
const (
	keyOrderID        = "order_id"
	keyPartialAmount  = "partial_payment_amount"
	keyPartialOrderID = "partial_payment_order_id"
)

func sessionString(r *http.Request, name, key string) string {
	if store == nil {
		return ""
	}
	session, _ := store.Get(r, name)
	value, _ := session.Values[key].(string)
	return value
}

// currentOrderID is the order the visitor is paying for in this session.
func currentOrderID(r *http.Request) string {
	return sessionString(r, sessionCheckout, keyOrderID)
}

func setCurrentOrder(w http.ResponseWriter, r *http.Request, orderID string) error {
	session, _ := store.Get(r, sessionCheckout)
	if previous, _ := session.Values[keyOrderID].(string); previous != orderID {
		delete(session.Values, keyPartialAmount)
		delete(session.Values, keyPartialOrderID)
	}
	session.Values[keyOrderID] = orderID
	return session.Save(r, w)
}

func (server *Server) currentOrder(r *http.Request) (*models.Order, error) {
	id := currentOrderID(r)
	if id == "" {
		return nil, nil
	}

	orderModel := models.Order{}
	order, err := orderModel.FindByID(server.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// checkoutContext reads the negotiated partial amount. Amounts are stored as
// strings to keep them exact across the cookie round trip.
func checkoutContext(r *http.Request) models.CheckoutContext {
	ctx := models.CheckoutContext{
		OrderID: sessionString(r, sessionCheckout, keyPartialOrderID),
	}

	raw := sessionString(r, sessionCheckout, keyPartialAmount)
	if raw == "" {
		return ctx
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return ctx
	}
	ctx.PartialAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	return ctx
}

func setPartialAmount(w http.ResponseWriter, r *http.Request, orderID string, amount decimal.Decimal) error {
	session, _ := store.Get(r, sessionCheckout)
	session.Values[keyPartialAmount] = amount.String()
	session.Values[keyPartialOrderID] = orderID
	return session.Save(r, w)
}

func clearPartialAmount(w http.ResponseWriter, r *http.Request) error {
	session, _ := store.Get(r, sessionCheckout)
	delete(session.Values, keyPartialAmount)
	delete(session.Values, keyPartialOrderID)
	return session.Save(r, w)
}
