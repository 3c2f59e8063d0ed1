package controllers

import (
	"github.com/gorilla/mux"
)

func (server *Server) initializeRoutes() {
	server.Router = mux.NewRouter()

	server.Router.HandleFunc("/login", server.DoLogin).Methods("POST")
	server.Router.HandleFunc("/logout", server.Logout).Methods("POST")

	// SHOP
	server.Router.HandleFunc("/shop/orders/{id}", server.ShowShopOrder).Methods("GET")
	server.Router.HandleFunc("/shop/payment", server.ShopPayment).Methods("GET")
	server.Router.HandleFunc("/shop/payment/partial_amount", server.SetPartialAmount).Methods("POST")
	server.Router.HandleFunc("/shop/payment/get_partial_amount", server.GetPartialAmount).Methods("POST")
	server.Router.HandleFunc("/shop/payment/transaction/{order_id}", server.CreatePaymentTransaction).Methods("POST")

	// ADMIN ORDERS
	server.Router.HandleFunc("/admin/orders", server.RequireAdmin(server.AdminCreateOrder)).Methods("POST")
	server.Router.HandleFunc("/admin/orders/{id}", server.RequireAdmin(server.AdminShowOrder)).Methods("GET")
	server.Router.HandleFunc("/admin/orders/{id}/register-payment", server.RequireAdmin(server.AdminRegisterPaymentForm)).Methods("GET")
	server.Router.HandleFunc("/admin/orders/{id}/register-payment", server.RequireAdmin(server.AdminRegisterPayment)).Methods("POST")
	server.Router.HandleFunc("/admin/transactions/{id}/confirm", server.RequireAdmin(server.AdminConfirmTransaction)).Methods("POST")

	// ADMIN PAYMENTS
	server.Router.HandleFunc("/admin/payments/import", server.RequireAdmin(server.AdminImportStatement)).Methods("POST")
	server.Router.HandleFunc("/admin/payments/auto-match", server.RequireAdmin(server.AdminAutoMatchPayments)).Methods("POST")
	server.Router.HandleFunc("/admin/payments/lines", server.RequireAdmin(server.AdminStatementLines)).Methods("GET")
}
