package repository

import (
	"time"

	"gorm.io/gorm"

	"qpaygate/internal/models"
)

// CredentialRepository handles per-tenant gateway credentials.
type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// FindByTenant returns the credential row for a tenant.
func (r *CredentialRepository) FindByTenant(tenantID string) (*models.Credential, error) {
	var c models.Credential
	if err := r.db.Where("tenant_id = ?", tenantID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts a credential row keyed by tenant id.
func (r *CredentialRepository) Save(c *models.Credential) error {
	return r.db.Save(c).Error
}

// ListExpiring returns enabled OAuth credentials whose expiry falls
// before the deadline. Tenants on a static API key never refresh and are
// excluded here.
func (r *CredentialRepository) ListExpiring(deadline time.Time) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.
		Where("enabled = ? AND api_key = '' AND refresh_token != '' AND expires_at <= ?",
			true, deadline.Unix()).
		Order("expires_at ASC").Find(&creds).Error
	return creds, err
}

// FanOutTokens writes a freshly refreshed token set to every tenant row
// that shared the old refresh token. A single keyed UPDATE per group, so
// unrelated tenant groups never contend on a global lock.
func (r *CredentialRepository) FanOutTokens(oldRefreshToken, accessToken, refreshToken string, expiresAt int64) (int64, error) {
	res := r.db.Model(&models.Credential{}).
		Where("refresh_token = ?", oldRefreshToken).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    expiresAt,
		})
	return res.RowsAffected, res.Error
}

// Disable turns a tenant's payment method off without deleting the row.
func (r *CredentialRepository) Disable(tenantID string) error {
	return r.db.Model(&models.Credential{}).
		Where("tenant_id = ?", tenantID).
		Update("enabled", false).Error
}

// ClearOAuth removes the OAuth field set in one statement, used on
// disconnect. The static API key, if any, stays in place.
func (r *CredentialRepository) ClearOAuth(tenantID string) error {
	return r.db.Model(&models.Credential{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"access_token":  "",
			"refresh_token": "",
			"expires_at":    0,
			"profile_id":    "",
		}).Error
}
