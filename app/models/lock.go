package models

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postgres lock_not_available, mysql ER_LOCK_NOWAIT
const (
	pgLockNotAvailable = "55P03"
	mysqlLockNoWait    = 3572
)

// noWaitOrderLock returns the row lock taken on an order while a payment is
// created for it. NO KEY UPDATE still lets transactions reference the order
// through foreign keys. Drivers without row locks get no clause.
func noWaitOrderLock(db *gorm.DB) (clause.Locking, bool) {
	switch db.Dialector.Name() {
	case "postgres":
		return clause.Locking{Strength: "NO KEY UPDATE", Options: "NOWAIT"}, true
	case "mysql":
		return clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}, true
	default:
		return clause.Locking{}, false
	}
}

// LockOrder takes the no-wait lock on the order row. A row already locked by
// another request is reported as ErrPaymentInProgress instead of blocking.
func LockOrder(tx *gorm.DB, orderID string) error {
	q := tx.Model(&Order{}).Select("id").Where("id = ?", orderID)
	if lock, ok := noWaitOrderLock(tx); ok {
		q = q.Clauses(lock)
	}

	var locked Order
	err := q.First(&locked).Error
	if err != nil {
		if IsLockConflict(err) {
			return userError(ErrPaymentInProgress, "A payment is already being processed for this order.")
		}
		return err
	}
	return nil
}

func IsLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockNoWait
	}

	// sqlite reports a busy database as plain text
	return strings.Contains(err.Error(), "database is locked")
}
