package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Currency struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:3;not null;uniqueIndex"` // IDR, EUR, USD
	Symbol        string `gorm:"size:10"`
	DecimalPlaces int32  `gorm:"default:2"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.DecimalPlaces)
}

// Format renders an amount the way the currency displays it, e.g. "Rp 150000.00".
func (c Currency) Format(amount decimal.Decimal) string {
	return c.Symbol + " " + c.Round(amount).StringFixed(c.DecimalPlaces)
}

func (c *Currency) FindByName(db *gorm.DB, name string) (*Currency, error) {
	var currency Currency
	err := db.Where("name = ?", name).First(&currency).Error
	if err != nil {
		return nil, err
	}
	return &currency, nil
}
