package models

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankStatementLine is one credit line imported from the shop's bank account.
type BankStatementLine struct {
	ID      uint            `gorm:"primaryKey;autoIncrement"`
	Bank    string          `gorm:"size:50"`
	Account string          `gorm:"size:100"`
	Amount  decimal.Decimal `gorm:"type:decimal(20,2)"`
	Note    string          `gorm:"size:255"` // transfer description as printed by the bank
	RefCode string          `gorm:"size:100"`
	TrxTime time.Time

	Matched              bool  `gorm:"default:false;index"`
	MatchedTransactionID *uint `gorm:"index"`
	MatchedAt            sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ParseStatementCSV reads a ';' separated export with the columns
// date;description;debit;credit;balance. The header row is skipped, as are
// rows without a usable credit amount.
func ParseStatementCSV(r io.Reader, bank string) ([]BankStatementLine, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var lines []BankStatementLine
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Println("[bank] skipping malformed row:", err)
			continue
		}
		if len(rec) < 4 {
			continue
		}

		amountStr := strings.TrimSpace(rec[3])
		amountStr = strings.ReplaceAll(amountStr, ".", "")
		amountStr = strings.ReplaceAll(amountStr, ",", ".")
		if amountStr == "" {
			continue
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil || !amount.IsPositive() {
			continue
		}

		trxTime, err := time.Parse("02/01/2006", strings.TrimSpace(rec[0]))
		if err != nil {
			trxTime = time.Now()
		}

		lines = append(lines, BankStatementLine{
			Bank:    bank,
			Amount:  amount,
			Note:    strings.TrimSpace(rec[1]),
			TrxTime: trxTime,
		})
	}

	return lines, nil
}

// MatchScore rates how likely a statement line pays a transaction. The
// second value is the time distance between both.
func (l BankStatementLine) MatchScore(tx Transaction) (int, time.Duration) {
	score := 0
	diff := time.Duration(1<<63 - 1)

	if !l.TrxTime.IsZero() && !tx.CreatedAt.IsZero() {
		d := l.TrxTime.Sub(tx.CreatedAt)
		if d < 0 {
			d = -d
		}
		diff = d

		if d <= 24*time.Hour {
			score++
		}
		if d <= 6*time.Hour {
			score++
		}
	}

	note := strings.ToLower(l.Note)
	if note != "" && tx.Reference != "" && strings.Contains(note, strings.ToLower(tx.Reference)) {
		score += 2
	}

	return score, diff
}

// AutoMatchPending pairs unmatched statement lines with pending transactions
// of the same amount and settles the transactions that found a line.
func AutoMatchPending(ctx context.Context, db *gorm.DB, lc Lifecycle) (int, error) {
	var pending []Transaction
	if err := db.Where("state = ?", consts.TxStatePending).Order("id asc").Find(&pending).Error; err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var lines []BankStatementLine
	if err := db.Where("matched = ?", false).Order("id asc").Find(&lines).Error; err != nil {
		return 0, err
	}

	byAmount := make(map[string][]int)
	for i, line := range lines {
		key := line.Amount.StringFixed(2)
		byAmount[key] = append(byAmount[key], i)
	}

	matched := 0
	for i := range pending {
		tx := &pending[i]
		key := tx.Amount.StringFixed(2)

		candidates := byAmount[key]
		if len(candidates) == 0 {
			continue
		}

		bestIdx := -1
		bestScore := -1
		var bestDiff time.Duration
		for _, idx := range candidates {
			score, diff := lines[idx].MatchScore(*tx)
			if bestIdx == -1 || score > bestScore || (score == bestScore && diff < bestDiff) {
				bestIdx = idx
				bestScore = score
				bestDiff = diff
			}
		}

		// no reference and more than a day apart: too risky to pair
		if bestDiff > 24*time.Hour && bestScore < 2 {
			continue
		}

		line := &lines[bestIdx]
		err := lc.inTransaction(ctx, db, func(dbtx *gorm.DB, lc Lifecycle) error {
			now := time.Now()
			line.Matched = true
			line.MatchedTransactionID = &tx.ID
			line.MatchedAt = sql.NullTime{Time: now, Valid: true}
			if err := dbtx.Save(line).Error; err != nil {
				return err
			}
			return tx.ConfirmPending(ctx, dbtx, lc, "Matched bank statement line "+line.Note)
		})
		if err != nil {
			// rolled back: the line stays available for the next transaction
			line.Matched = false
			line.MatchedTransactionID = nil
			line.MatchedAt = sql.NullTime{}
			log.Printf("[bank] match %s failed: %v", tx.Reference, err)
			continue
		}

		remaining := candidates[:0:0]
		for _, idx := range candidates {
			if idx != bestIdx {
				remaining = append(remaining, idx)
			}
		}
		byAmount[key] = remaining

		matched++
	}

	return matched, nil
}
