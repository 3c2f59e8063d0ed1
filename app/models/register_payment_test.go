package models

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/events"
	"gorm.io/gorm"
)

func testLifecycle() (Lifecycle, *events.Recorder) {
	rec := &events.Recorder{}
	return Lifecycle{ConfirmPolicy: consts.ConfirmPolicyAnyTransaction, Publisher: rec}, rec
}

func TestRegisterPaymentSettlesRemaining(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	card := seedProvider(t, db, "Card", consts.ProviderStateEnabled, "c1")
	wire := seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")
	seedTx(t, db, order, card, "30", consts.TxStateDone)
	seedTx(t, db, order, card, "20", consts.TxStatePending)
	order = reloadOrder(t, db, order.ID)
	assertAmounts(t, order, "30", "20", "50")

	lc, rec := testLifecycle()
	entry := RegisterPaymentEntry{OrderID: order.ID, Amount: dec("50"), Author: "ops@example.com"}
	tx, err := ActionRegisterPayment(context.Background(), db, entry, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if tx.State != consts.TxStateDone || tx.Operation != consts.TxOperationOffline {
		t.Fatalf("unexpected transaction %s/%s", tx.State, tx.Operation)
	}
	if tx.ProviderID != wire.ID {
		t.Fatalf("expected wire transfer provider got %d", tx.ProviderID)
	}
	if !strings.HasPrefix(tx.Reference, order.Code+"-") {
		t.Fatalf("unexpected reference %s", tx.Reference)
	}

	reloaded := reloadOrder(t, db, order.ID)
	assertAmounts(t, reloaded, "80", "20", "0")
	if reloaded.State != consts.OrderStateSale {
		t.Fatalf("expected sale got %s", reloaded.State)
	}
	if len(rec.Events) == 0 {
		t.Fatalf("expected events to be published")
	}
}

func TestRegisterPaymentUsesWireTransferProvider(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	seedProvider(t, db, "Card", consts.ProviderStateEnabled, "c1")
	wire := seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")

	lc, _ := testLifecycle()
	tx, err := ActionRegisterPayment(context.Background(), db, RegisterPaymentEntry{OrderID: order.ID, Amount: dec("10")}, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx.ProviderID != wire.ID {
		t.Fatalf("expected provider %d got %d", wire.ID, tx.ProviderID)
	}
}

func TestRegisterPaymentFallsBackToAnyProvider(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	card := seedProvider(t, db, "Card", consts.ProviderStateEnabled, "c1")
	seedProvider(t, db, "Wire Transfer", consts.ProviderStateDisabled, "c1")
	order := seedOrder(t, db, cur, "100")

	lc, _ := testLifecycle()
	tx, err := ActionRegisterPayment(context.Background(), db, RegisterPaymentEntry{OrderID: order.ID, Amount: dec("10")}, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx.ProviderID != card.ID {
		t.Fatalf("expected fallback provider %d got %d", card.ID, tx.ProviderID)
	}
}

func TestRegisterPaymentRejects(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")
	lc, _ := testLifecycle()

	cases := []struct {
		name   string
		amount string
		kind   error
		msg    string
	}{
		{"zero", "0", ErrInvalidAmount, "Payment amount must be greater than zero."},
		{"negative", "-1", ErrInvalidAmount, "Payment amount must be greater than zero."},
		{"above remaining", "100.01", ErrInvalidAmount, "Payment amount cannot exceed the remaining amount."},
	}

	for _, tc := range cases {
		_, err := ActionRegisterPayment(context.Background(), db, RegisterPaymentEntry{OrderID: order.ID, Amount: dec(tc.amount)}, lc)
		if !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.kind, err)
		}
		if msg, _ := UserMessage(err); msg != tc.msg {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.msg, msg)
		}
	}

	var count int64
	db.Model(&Transaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no transaction, found %d", count)
	}
	assertAmounts(t, reloadOrder(t, db, order.ID), "0", "0", "100")
}

func TestRegisterPaymentWithoutProvider(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	seedProvider(t, db, "Card", consts.ProviderStateDisabled, "c1")
	seedProvider(t, db, "Other Company", consts.ProviderStateEnabled, "c2")
	order := seedOrder(t, db, cur, "100")

	lc, _ := testLifecycle()
	_, err := ActionRegisterPayment(context.Background(), db, RegisterPaymentEntry{OrderID: order.ID, Amount: dec("10")}, lc)
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider got %v", err)
	}
	if msg, _ := UserMessage(err); msg != "No payment provider available." {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRegisterPaymentSettlesPendingTransaction(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	wire := seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")
	seedTx(t, db, order, wire, "30", consts.TxStateDone)
	pending := seedTx(t, db, order, wire, "20", consts.TxStatePending)

	entry := NewRegisterPaymentEntry(reloadOrder(t, db, order.ID))
	if entry.PendingTransactionID == nil || *entry.PendingTransactionID != pending.ID {
		t.Fatalf("expected the pending transaction to be preselected")
	}
	if !entry.Amount.Equal(dec("20")) {
		t.Fatalf("expected prefilled 20 got %s", entry.Amount)
	}

	// the customer actually wired more than announced
	entry.Amount = dec("70")
	lc, _ := testLifecycle()
	tx, err := ActionRegisterPayment(context.Background(), db, entry, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx.ID != pending.ID || tx.State != consts.TxStateDone {
		t.Fatalf("expected the pending transaction to be settled in place")
	}

	var count int64
	db.Model(&Transaction{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 transactions got %d", count)
	}
	assertAmounts(t, reloadOrder(t, db, order.ID), "100", "0", "0")
}

func TestRegisterPaymentPendingTransactionCap(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	wire := seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")
	seedTx(t, db, order, wire, "20", consts.TxStatePending)

	entry := NewRegisterPaymentEntry(reloadOrder(t, db, order.ID))
	entry.Amount = dec("100.01")
	lc, _ := testLifecycle()
	if _, err := ActionRegisterPayment(context.Background(), db, entry, lc); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount got %v", err)
	}
	assertAmounts(t, reloadOrder(t, db, order.ID), "0", "20", "80")
}

func TestRegisterPaymentNote(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")

	lc, _ := testLifecycle()
	entry := RegisterPaymentEntry{
		OrderID:          order.ID,
		Amount:           dec("25"),
		PaymentReference: "BANK-42",
		Note:             "cash at the counter",
		Author:           "ops@example.com",
	}
	tx, err := ActionRegisterPayment(context.Background(), db, entry, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx.Reference != "BANK-42" {
		t.Fatalf("expected the given reference got %s", tx.Reference)
	}

	reloaded := reloadOrder(t, db, order.ID)
	if len(reloaded.Messages) != 1 {
		t.Fatalf("expected one message got %d", len(reloaded.Messages))
	}
	if got := reloaded.Messages[0].Body; got != "Payment registered: 25.00 EUR - cash at the counter" {
		t.Fatalf("unexpected message %q", got)
	}

	// same reference again gets a suffix
	entry.Note = ""
	again, err := ActionRegisterPayment(context.Background(), db, entry, lc)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if again.Reference != "BANK-42-1" {
		t.Fatalf("expected BANK-42-1 got %s", again.Reference)
	}
}

func TestRegisterPaymentRollbackPublishesNothing(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")

	// the note is the last write of the registration, fail it
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_order_messages", func(tx *gorm.DB) {
		if tx.Statement.Table == "order_messages" {
			_ = tx.AddError(errors.New("boom"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	lc, rec := testLifecycle()
	entry := RegisterPaymentEntry{OrderID: order.ID, Amount: dec("100"), Note: "cash", Author: "ops@example.com"}
	if _, err := ActionRegisterPayment(context.Background(), db, entry, lc); err == nil {
		t.Fatalf("expected the registration to fail")
	}

	if topics := rec.Topics(); len(topics) != 0 {
		t.Fatalf("nothing may be published for a rolled back payment, got %v", topics)
	}

	var count int64
	db.Model(&Transaction{}).Count(&count)
	reloaded := reloadOrder(t, db, order.ID)
	if count != 0 || reloaded.State != consts.OrderStateDraft {
		t.Fatalf("expected a rollback, got %d transactions and state %s", count, reloaded.State)
	}
	assertAmounts(t, reloaded, "0", "0", "100")
}

func TestRegisterPaymentPrefilledEntrySettlesPendingTransfer(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	card := seedProvider(t, db, "Card", consts.ProviderStateEnabled, "c1")
	seedProvider(t, db, "Wire Transfer", consts.ProviderStateEnabled, "c1")
	order := seedOrder(t, db, cur, "100")
	seedTx(t, db, order, card, "30", consts.TxStateDone)
	pending := seedTx(t, db, order, card, "20", consts.TxStatePending)
	order = reloadOrder(t, db, order.ID)

	entry := NewRegisterPaymentEntry(order)
	if entry.PendingTransactionID == nil || *entry.PendingTransactionID != pending.ID {
		t.Fatalf("expected the pending transfer to be prefilled, got %v", entry.PendingTransactionID)
	}
	entry.Amount = dec("50")

	lc, _ := testLifecycle()
	tx, err := ActionRegisterPayment(context.Background(), db, entry, lc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tx.ID != pending.ID {
		t.Fatalf("expected the pending transaction to be settled, got %d", tx.ID)
	}

	// the pending 20 is amended to 50, not added on top of it
	assertAmounts(t, reloadOrder(t, db, order.ID), "80", "0", "20")
}
