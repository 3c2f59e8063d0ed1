package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createOrderRequest struct {
	PartnerEmail      string          `json:"partner_email"`
	CompanyID         string          `json:"company_id"`
	Currency          string          `json:"currency"`
	AmountTotal       json.RawMessage `json:"amount_total"`
	RequirePayment    bool            `json:"require_payment"`
	PrepaymentPercent json.RawMessage `json:"prepayment_percent"`
	Sent              bool            `json:"sent"`
}

// POST /admin/orders
func (server *Server) AdminCreateOrder(w http.ResponseWriter, r *http.Request, admin *models.User) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	currencyModel := models.Currency{}
	currency, err := currencyModel.FindByName(server.DB, strings.ToUpper(strings.TrimSpace(req.Currency)))
	if err != nil {
		if isNotFound(err) {
			_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown currency"})
			return
		}
		writeError(w, err)
		return
	}

	total, present, err := models.ParseAmountInput(req.AmountTotal)
	if err != nil || !present {
		_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid amount"})
		return
	}
	percent, _, err := models.ParseAmountInput(req.PrepaymentPercent)
	if err != nil || percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(1)) {
		_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Prepayment percent must be between 0 and 1"})
		return
	}

	state := consts.OrderStateDraft
	if req.Sent {
		state = consts.OrderStateSent
	}

	orderModel := models.Order{}
	order, err := orderModel.CreateOrder(server.DB, &models.Order{
		CompanyID:         req.CompanyID,
		PartnerEmail:      strings.TrimSpace(req.PartnerEmail),
		CurrencyID:        currency.ID,
		State:             state,
		AmountTotal:       currency.Round(total),
		RequirePayment:    req.RequirePayment,
		PrepaymentPercent: percent,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	order, err = orderModel.FindByID(server.DB, order.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusCreated, orderView(order, true))
}

// GET /admin/orders/{id}
func (server *Server) AdminShowOrder(w http.ResponseWriter, r *http.Request, admin *models.User) {
	orderModel := models.Order{}
	order, err := orderModel.FindByID(server.DB, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, orderView(order, true))
}

// GET /admin/orders/{id}/register-payment
// Returns the prefilled entry the operator starts from.
func (server *Server) AdminRegisterPaymentForm(w http.ResponseWriter, r *http.Request, admin *models.User) {
	orderModel := models.Order{}
	order, err := orderModel.FindByID(server.DB, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	entry := models.NewRegisterPaymentEntry(order)
	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"order_id":               entry.OrderID,
		"amount":                 money(entry.Amount),
		"currency_id":            entry.CurrencyID,
		"currency":               order.Currency.Name,
		"payment_date":           entry.PaymentDate.Format("2006-01-02"),
		"pending_transaction_id": entry.PendingTransactionID,
		"amount_remaining":       money(order.AmountRemaining),
	})
}

type registerPaymentRequest struct {
	Amount               json.RawMessage `json:"amount"`
	CurrencyID           uint            `json:"currency_id"`
	PaymentDate          string          `json:"payment_date"`
	PaymentReference     string          `json:"payment_reference"`
	Note                 string          `json:"note"`
	PendingTransactionID *uint           `json:"pending_transaction_id"`
}

// POST /admin/orders/{id}/register-payment
// Fields left out keep the prefilled value of the entry.
func (server *Server) AdminRegisterPayment(w http.ResponseWriter, r *http.Request, admin *models.User) {
	var req registerPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	orderModel := models.Order{}
	order, err := orderModel.FindByID(server.DB, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	entry := models.NewRegisterPaymentEntry(order)
	entry.Author = admin.Email
	entry.PaymentReference = strings.TrimSpace(req.PaymentReference)
	entry.Note = strings.TrimSpace(req.Note)
	if req.PendingTransactionID != nil {
		if *req.PendingTransactionID == 0 {
			entry.PendingTransactionID = nil
			entry.Amount = order.AmountRemaining
		} else {
			entry.PendingTransactionID = req.PendingTransactionID
		}
	}
	if req.CurrencyID != 0 {
		entry.CurrencyID = req.CurrencyID
	}
	if req.PaymentDate != "" {
		date, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payment date"})
			return
		}
		entry.PaymentDate = date
	}

	amount, present, err := models.ParseAmountInput(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if present {
		entry.Amount = amount
	}

	tx, err := models.ActionRegisterPayment(r.Context(), server.DB, entry, server.lifecycle())
	if err != nil {
		writeError(w, err)
		return
	}

	order, err = orderModel.FindByID(server.DB, order.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"transaction": transactionView(tx),
		"order":       orderView(order, true),
	})
}

// POST /admin/transactions/{id}/confirm
// Settles a pending transaction once the money was received.
func (server *Server) AdminConfirmTransaction(w http.ResponseWriter, r *http.Request, admin *models.User) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		_ = renderer.JSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	tx, err := models.ConfirmPendingTransaction(r.Context(), server.DB, uint(id), server.lifecycle(), "Confirmed by "+admin.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, transactionView(tx))
}
