package models

import (
	"log"
	"strings"
	"time"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Provider is a configured payment method (bank transfer, card acquirer, ...).
type Provider struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"size:100;not null"`
	Code           string `gorm:"size:100;not null;index"`
	State          string `gorm:"size:20;not null;default:disabled;index"`
	CompanyID      string `gorm:"size:36;index"`
	PendingMessage string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeCreate derives the code from the name, "Wire Transfer" -> "wire_transfer".
func (p *Provider) BeforeCreate(tx *gorm.DB) error {
	if p.Code == "" {
		p.Code = strings.ReplaceAll(slug.Make(p.Name), "-", "_")
	}
	if p.State == "" {
		p.State = consts.ProviderStateDisabled
	}
	return nil
}

func (p Provider) IsEnabled() bool {
	return p.State == consts.ProviderStateEnabled || p.State == consts.ProviderStateTest
}

func (p *Provider) FindByID(db *gorm.DB, id uint) (*Provider, error) {
	var provider Provider
	err := db.Where("id = ?", id).First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// ListAvailable returns the providers a customer of the company can pay with.
func (p *Provider) ListAvailable(db *gorm.DB, companyID string) ([]Provider, error) {
	var providers []Provider
	err := db.
		Where("state IN ?", []string{consts.ProviderStateEnabled, consts.ProviderStateTest}).
		Where("company_id = ? OR company_id = ''", companyID).
		Order("id asc").
		Find(&providers).Error
	return providers, err
}

// FindOfflineProvider picks the provider used for manually registered
// payments: the enabled wire transfer provider of the company, otherwise any
// enabled provider of the company.
//
// The fallback does not check that the provider can settle offline payments.
func FindOfflineProvider(db *gorm.DB, companyID string) (*Provider, error) {
	scope := func() *gorm.DB {
		return db.Model(&Provider{}).
			Where("state = ?", consts.ProviderStateEnabled).
			Where("company_id = ? OR company_id = ''", companyID).
			Order("id asc")
	}

	var providers []Provider
	if err := scope().Where("code = ?", consts.ProviderCodeWireTransfer).Limit(1).Find(&providers).Error; err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		if err := scope().Limit(1).Find(&providers).Error; err != nil {
			return nil, err
		}
		if len(providers) > 0 {
			log.Printf("[payment] no wire transfer provider for company %q, using %s", companyID, providers[0].Code)
		}
	}
	if len(providers) == 0 {
		return nil, userError(ErrNoProvider, "No payment provider available.")
	}

	return &providers[0], nil
}
