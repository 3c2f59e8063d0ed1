package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// POST /shop/payment/partial_amount
// params: {"amount": 40} or {"amount": null} for the full amount
func (server *Server) SetPartialAmount(w http.ResponseWriter, r *http.Request) {
	call, err := readRPC(r)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	var params struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := call.bind(&params); err != nil {
		writeRPCError(w, call, err)
		return
	}

	order, err := server.currentOrder(r)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	res, err := models.NegotiatePartialAmount(order, params.Amount)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	result := map[string]interface{}{
		"success": true,
		"amount":  money(res.Amount),
		"message": res.Message,
	}
	if res.Clear {
		err = clearPartialAmount(w, r)
	} else {
		err = setPartialAmount(w, r, order.ID, res.Amount)
		result["remaining"] = money(res.Remaining)
	}
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	writeRPC(w, call, http.StatusOK, result)
}

// POST /shop/payment/get_partial_amount
func (server *Server) GetPartialAmount(w http.ResponseWriter, r *http.Request) {
	call, err := readRPC(r)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	order, err := server.currentOrder(r)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}
	if order == nil {
		writeRPC(w, call, http.StatusOK, map[string]interface{}{"error": "No order found"})
		return
	}

	var partial interface{}
	if ctx := checkoutContext(r); ctx.PartialAmount.Valid && ctx.OrderID == order.ID {
		partial = money(ctx.PartialAmount.Decimal)
	}

	writeRPC(w, call, http.StatusOK, map[string]interface{}{
		"partial_amount":  partial,
		"order_total":     money(order.AmountTotal),
		"partial_enabled": order.AmountTotal.IsPositive(),
		"currency_id":     order.CurrencyID,
		"currency_symbol": order.Currency.Symbol,
		"currency":        order.Currency.Name,
	})
}

// GET /shop/payment
func (server *Server) ShopPayment(w http.ResponseWriter, r *http.Request) {
	order, err := server.currentOrder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if order == nil {
		_ = renderer.JSON(w, http.StatusNotFound, map[string]string{"error": "No order found"})
		return
	}

	providerModel := models.Provider{}
	providers, err := providerModel.ListAvailable(server.DB, order.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}

	providerList := make([]map[string]interface{}, 0, len(providers))
	for _, p := range providers {
		providerList = append(providerList, map[string]interface{}{
			"id":   p.ID,
			"name": p.Name,
			"code": p.Code,
		})
	}

	data := map[string]interface{}{
		"order":            orderView(order, false),
		"providers":        providerList,
		"amount_paid":      money(order.AmountPaid),
		"amount_pending":   money(order.AmountPending),
		"amount_remaining": money(order.AmountRemaining),
		"currency":         order.Currency.Name,
	}
	if order.AmountTotal.IsPositive() {
		data["partial_payment_enabled"] = true
		data["order_amount_total"] = money(order.AmountTotal)
		data["partial_amount"] = money(order.PartialPaymentAmount(checkoutContext(r)))
	}

	_ = renderer.JSON(w, http.StatusOK, data)
}

// POST /shop/payment/transaction/{order_id}
// params: {"access_token": "...", "provider_id": 1, "amount": 40, "flow": "redirect"}
func (server *Server) CreatePaymentTransaction(w http.ResponseWriter, r *http.Request) {
	call, err := readRPC(r)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	var params struct {
		AccessToken string          `json:"access_token"`
		ProviderID  uint            `json:"provider_id"`
		Amount      json.RawMessage `json:"amount"`
		Flow        string          `json:"flow"`
	}
	if err := call.bind(&params); err != nil {
		writeRPCError(w, call, err)
		return
	}

	orderModel := models.Order{}
	order, err := orderModel.FindByAccessToken(server.DB, mux.Vars(r)["order_id"], params.AccessToken)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	amount, present, err := models.ParseAmountInput(params.Amount)
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	req := models.CheckoutTransactionRequest{
		ProviderID: params.ProviderID,
		Amount:     decimal.NullDecimal{Decimal: amount, Valid: present},
		Flow:       params.Flow,
	}
	tx, err := models.CreateCheckoutTransaction(server.DB, order.ID, req, checkoutContext(r))
	if err != nil {
		writeRPCError(w, call, err)
		return
	}

	var processing interface{}
	if len(tx.ProcessingValues) > 0 {
		processing = json.RawMessage(tx.ProcessingValues)
	}

	writeRPC(w, call, http.StatusOK, map[string]interface{}{
		"transaction_id":    tx.ID,
		"reference":         tx.Reference,
		"amount":            money(tx.Amount),
		"currency":          tx.Currency.Name,
		"provider_code":     tx.Provider.Code,
		"state":             tx.State,
		"processing_values": processing,
	})
}
