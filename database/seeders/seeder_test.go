package seeders

import (
	"testing"

	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:seed?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range models.RegisterModels() {
		if err := db.AutoMigrate(m.Model); err != nil {
			t.Fatal(err)
		}
	}

	opts := Options{Orders: 3, AdminEmail: "Boss@Example.com", AdminPassword: "s3cret-from-env"}
	if err := DBSeed(db, opts); err != nil {
		t.Fatal(err)
	}
	if err := DBSeed(db, opts); err != nil {
		t.Fatal(err)
	}

	var currencies, providers, admins, orders int64
	db.Model(&models.Currency{}).Count(&currencies)
	db.Model(&models.Provider{}).Count(&providers)
	db.Model(&models.User{}).Where("role = ?", consts.UserRoleAdmin).Count(&admins)
	db.Model(&models.Order{}).Count(&orders)

	if currencies != 3 || providers != 3 || admins != 1 {
		t.Fatalf("reference data duplicated: currencies=%d providers=%d admins=%d", currencies, providers, admins)
	}
	if orders != 6 {
		t.Fatalf("expected 6 orders got %d", orders)
	}

	p, err := models.FindOfflineProvider(db, "")
	if err != nil || p.Code != consts.ProviderCodeWireTransfer {
		t.Fatalf("expected the seeded wire transfer provider, got %+v err=%v", p, err)
	}

	userModel := models.User{}
	admin, err := userModel.FindByEmail(db, "boss@example.com")
	if err != nil || !models.ComparePassword("s3cret-from-env", admin.Password) {
		t.Fatalf("admin login should work with the configured password, err=%v", err)
	}
	if models.ComparePassword("password", admin.Password) {
		t.Fatalf("the admin must not get a well-known password")
	}
}

func TestSeedGeneratesAdminPassword(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:seed_generated?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range models.RegisterModels() {
		if err := db.AutoMigrate(m.Model); err != nil {
			t.Fatal(err)
		}
	}

	if err := DBSeed(db, Options{}); err != nil {
		t.Fatal(err)
	}

	userModel := models.User{}
	admin, err := userModel.FindByEmail(db, "admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if admin.Password == "" || models.ComparePassword("password", admin.Password) || models.ComparePassword("", admin.Password) {
		t.Fatalf("expected a generated password")
	}
}
