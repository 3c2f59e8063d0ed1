package models

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, m := range RegisterModels() {
		if err := db.AutoMigrate(m.Model); err != nil {
			t.Fatalf("migrate %T: %v", m.Model, err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedCurrency(t *testing.T, db *gorm.DB) Currency {
	t.Helper()
	c := Currency{Name: "EUR", Symbol: "€", DecimalPlaces: 2}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("currency: %v", err)
	}
	return c
}

func seedProvider(t *testing.T, db *gorm.DB, name, state, companyID string) Provider {
	t.Helper()
	p := Provider{Name: name, State: state, CompanyID: companyID, PendingMessage: "Please transfer to IBAN FR76 0000"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("provider: %v", err)
	}
	return p
}

func seedOrder(t *testing.T, db *gorm.DB, currency Currency, total string) *Order {
	t.Helper()
	orderModel := Order{}
	order, err := orderModel.CreateOrder(db, &Order{
		CompanyID:    "c1",
		PartnerEmail: "buyer@example.com",
		CurrencyID:   currency.ID,
		AmountTotal:  dec(total),
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	return reloadOrder(t, db, order.ID)
}

func reloadOrder(t *testing.T, db *gorm.DB, id string) *Order {
	t.Helper()
	orderModel := Order{}
	order, err := orderModel.FindByID(db, id)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

// seedTx creates a transaction on the order and moves it to state.
func seedTx(t *testing.T, db *gorm.DB, order *Order, provider Provider, amount string, state string) *Transaction {
	t.Helper()
	var count int64
	db.Model(&Transaction{}).Count(&count)
	tx, err := CreateTransaction(db, &Transaction{
		Reference:  fmt.Sprintf("%s-seed-%d", order.Code, count+1),
		ProviderID: provider.ID,
		Amount:     dec(amount),
		CurrencyID: order.CurrencyID,
		Operation:  consts.TxOperationOnlineRedirect,
	}, order)
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	switch state {
	case consts.TxStateDraft:
	case consts.TxStatePending:
		_, err = tx.SetPending(db, "")
	case consts.TxStateAuthorized:
		_, err = tx.SetAuthorized(db, "")
	case consts.TxStateDone:
		_, err = tx.SetDone(db, "")
	case consts.TxStateCancel:
		_, err = tx.SetCanceled(db, "")
	case consts.TxStateError:
		_, err = tx.SetError(db, "")
	default:
		t.Fatalf("unknown state %s", state)
	}
	if err != nil {
		t.Fatalf("set %s: %v", state, err)
	}
	return tx
}

func assertAmounts(t *testing.T, order *Order, paid, pending, remaining string) {
	t.Helper()
	if !order.AmountPaid.Equal(dec(paid)) {
		t.Fatalf("amount_paid: expected %s got %s", paid, order.AmountPaid)
	}
	if !order.AmountPending.Equal(dec(pending)) {
		t.Fatalf("amount_pending: expected %s got %s", pending, order.AmountPending)
	}
	if !order.AmountRemaining.Equal(dec(remaining)) {
		t.Fatalf("amount_remaining: expected %s got %s", remaining, order.AmountRemaining)
	}
}
