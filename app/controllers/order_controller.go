package controllers

import (
	"net/http"

	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/gorilla/mux"
)

// GET /shop/orders/{id}?access_token=...
// Opens the order in the portal and makes it the session's order to pay.
func (server *Server) ShowShopOrder(w http.ResponseWriter, r *http.Request) {
	orderModel := models.Order{}
	order, err := orderModel.FindByAccessToken(server.DB, mux.Vars(r)["id"], r.URL.Query().Get("access_token"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := setCurrentOrder(w, r, order.ID); err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, orderView(order, false))
}

// orderView is the JSON shape of an order. The back-office view adds the
// access token and the message log.
func orderView(order *models.Order, admin bool) map[string]interface{} {
	txs := make([]map[string]interface{}, 0, len(order.Transactions))
	for i := range order.Transactions {
		txs = append(txs, transactionView(&order.Transactions[i]))
	}

	amounts := order.Amounts()
	view := map[string]interface{}{
		"id":                     order.ID,
		"code":                   order.Code,
		"state":                  order.State,
		"partner_email":          order.PartnerEmail,
		"currency":               order.Currency.Name,
		"amount_total":           money(order.AmountTotal),
		"amount_paid":            money(amounts.Paid),
		"amount_pending":         money(amounts.Pending),
		"amount_remaining":       money(amounts.Remaining),
		"amount_remaining_label": order.Currency.Format(amounts.Remaining),
		"require_payment":        order.RequirePayment,
		"prepayment_percent":     money(order.PrepaymentPercent),
		"transactions":           txs,
	}

	if admin {
		messages := make([]map[string]interface{}, 0, len(order.Messages))
		for _, m := range order.Messages {
			messages = append(messages, map[string]interface{}{
				"author":     m.Author,
				"body":       m.Body,
				"created_at": m.CreatedAt,
			})
		}
		view["company_id"] = order.CompanyID
		view["access_token"] = order.AccessToken
		view["messages"] = messages
		if order.ConfirmedAt.Valid {
			view["confirmed_at"] = order.ConfirmedAt.Time
		}
	}

	return view
}

func transactionView(tx *models.Transaction) map[string]interface{} {
	view := map[string]interface{}{
		"id":            tx.ID,
		"reference":     tx.Reference,
		"amount":        money(tx.Amount),
		"state":         tx.State,
		"state_message": tx.StateMessage,
		"operation":     tx.Operation,
	}
	if tx.Provider.ID != 0 {
		view["provider_code"] = tx.Provider.Code
	}
	return view
}
