package repository

import (
	"errors"

	"gorm.io/gorm"

	"qpaygate/internal/models"
)

// SettingRepository handles the tenant and global key-value settings
// tables.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetTenant returns a tenant-scoped setting value, or "" when unset.
func (r *SettingRepository) GetTenant(tenantID, name string) (string, error) {
	var ts models.TenantSetting
	err := r.db.Where("tenant_id = ? AND name = ?", tenantID, name).First(&ts).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ts.Value, nil
}

// SetTenant upserts a tenant-scoped setting.
func (r *SettingRepository) SetTenant(tenantID, name, value string) error {
	var ts models.TenantSetting
	err := r.db.Where("tenant_id = ? AND name = ?", tenantID, name).First(&ts).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&models.TenantSetting{TenantID: tenantID, Name: name, Value: value}).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&ts).Update("value", value).Error
}

// GetGlobal returns an operator-wide setting value, or "" when unset.
func (r *SettingRepository) GetGlobal(name string) (string, error) {
	var gs models.GlobalSetting
	err := r.db.Where("name = ?", name).First(&gs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return gs.Value, nil
}

// SetGlobal upserts an operator-wide setting.
func (r *SettingRepository) SetGlobal(name, value string) error {
	return r.db.Save(&models.GlobalSetting{Name: name, Value: value}).Error
}
