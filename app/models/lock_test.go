package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsLockConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"postgres wrapped", fmt.Errorf("select: %w", &pgconn.PgError{Code: "55P03"}), true},
		{"postgres other", &pgconn.PgError{Code: "23505"}, false},
		{"mysql nowait", &mysql.MySQLError{Number: 3572}, true},
		{"mysql other", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", errors.New("database is locked"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLockConflict(tc.err); got != tc.want {
				t.Fatalf("IsLockConflict(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestLockOrderReportsPaymentInProgress(t *testing.T) {
	db := setupTestDB(t)
	cur := seedCurrency(t, db)
	order := seedOrder(t, db, cur, "100")

	if err := LockOrder(db, order.ID); err != nil {
		t.Fatalf("free order: %v", err)
	}

	// another request holds the row
	err := db.Callback().Query().Before("gorm:query").Register("test:order_locked", func(tx *gorm.DB) {
		if tx.Statement.Table == "orders" {
			_ = tx.AddError(&pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row"})
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	err = LockOrder(db, order.ID)
	if !errors.Is(err, ErrPaymentInProgress) {
		t.Fatalf("expected ErrPaymentInProgress got %v", err)
	}
	if msg, _ := UserMessage(err); msg != "A payment is already being processed for this order." {
		t.Fatalf("unexpected message %q", msg)
	}
}
