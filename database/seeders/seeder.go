package seeders

import (
	"log"
	"strings"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/alirogz/goshop-partialpay/database/fakers"
	"gorm.io/gorm"
)

type Options struct {
	Orders        int
	AdminEmail    string
	AdminPassword string // random when empty
	CompanyID     string
}

var baseCurrencies = []models.Currency{
	{Name: "IDR", Symbol: "Rp", DecimalPlaces: 2},
	{Name: "EUR", Symbol: "€", DecimalPlaces: 2},
	{Name: "USD", Symbol: "$", DecimalPlaces: 2},
}

var baseProviders = []models.Provider{
	{
		Name:           "Wire Transfer",
		State:          consts.ProviderStateEnabled,
		PendingMessage: "Please transfer the amount to our bank account and mention the payment reference.",
	},
	{Name: "Card", State: consts.ProviderStateEnabled},
	{Name: "Demo", State: consts.ProviderStateTest},
}

// DBSeed creates reference data once and adds fresh fake orders on every run.
func DBSeed(db *gorm.DB, opts Options) error {
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@example.com"
	}

	var currencies []models.Currency
	for _, c := range baseCurrencies {
		currency := c
		if err := db.Where(models.Currency{Name: c.Name}).FirstOrCreate(&currency).Error; err != nil {
			return err
		}
		currencies = append(currencies, currency)
	}

	for _, p := range baseProviders {
		provider := p
		provider.CompanyID = opts.CompanyID
		if err := db.Where(models.Provider{Name: p.Name}).FirstOrCreate(&provider).Error; err != nil {
			return err
		}
	}

	var admins int64
	if err := db.Model(&models.User{}).Where("email = ?", strings.ToLower(opts.AdminEmail)).Count(&admins).Error; err != nil {
		return err
	}
	if admins == 0 {
		admin, password, err := fakers.AdminFaker(opts.AdminEmail, opts.AdminPassword)
		if err != nil {
			return err
		}
		if err := db.Create(admin).Error; err != nil {
			return err
		}
		if opts.AdminPassword == "" {
			log.Printf("[seed] admin %s created, generated password: %s", admin.Email, password)
		} else {
			log.Printf("[seed] admin %s created with ADMIN_PASSWORD", admin.Email)
		}
	}

	orderModel := models.Order{}
	for i := 0; i < opts.Orders; i++ {
		currency := currencies[i%len(currencies)]
		if _, err := orderModel.CreateOrder(db, fakers.OrderFaker(currency, opts.CompanyID)); err != nil {
			return err
		}
	}

	log.Println("Database seeded successfully.")
	return nil
}
