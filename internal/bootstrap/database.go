package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"qpaygate/internal/checkout"
	"qpaygate/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Order{},
		&models.OrderItem{},
		&models.Quota{},
		&models.Payment{},
		&models.Refund{},
		&models.PaymentEvent{},
		&models.Credential{},
		&models.TenantSetting{},
		&models.GlobalSetting{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return ensureGlobalSettings(tx)
	})
}

// ensureGlobalSettings creates empty rows for the gateway account
// settings so operators can fill them in without knowing the key names.
func ensureGlobalSettings(tx *gorm.DB) error {
	keys := []string{
		checkout.KeyLogin,
		checkout.KeyPrivateKey,
		checkout.KeyAPISecret,
		checkout.KeyEndpoint,
		checkout.KeyOrgID,
		checkout.KeyCountry,
		checkout.KeyState,
		checkout.KeyCity,
		checkout.KeyZip,
		checkout.KeyAddress,
	}
	for _, key := range keys {
		var count int64
		if err := tx.Model(&models.GlobalSetting{}).
			Where("name = ?", key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&models.GlobalSetting{Name: key}).Error; err != nil {
			return err
		}
	}
	return nil
}
