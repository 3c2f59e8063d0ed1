package fakers

import (
	"math/rand"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/bxcodec/faker/v3"
	"github.com/shopspring/decimal"
)

// OrderFaker builds a draft quotation in the given currency, half of them
// asking for a 30% prepayment.
func OrderFaker(currency models.Currency, companyID string) *models.Order {
	total := decimal.NewFromInt(int64(rand.Intn(99000) + 1000)).Shift(-2)

	order := &models.Order{
		CompanyID:    companyID,
		PartnerEmail: faker.Email(),
		CurrencyID:   currency.ID,
		State:        consts.OrderStateDraft,
		AmountTotal:  currency.Round(total),
	}
	if rand.Intn(2) == 0 {
		order.RequirePayment = true
		order.PrepaymentPercent = decimal.NewFromFloat(0.3)
	}

	return order
}
