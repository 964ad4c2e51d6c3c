package models

import "time"

// Credential maps to the `credentials` table. One row per tenant holding
// its OAuth state for the gateway. A non-empty APIKey is a static
// fallback: tenants with one never go through token refresh.
type Credential struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID     string    `gorm:"column:tenant_id;size:191;uniqueIndex" json:"tenant_id"`
	AccessToken  string    `gorm:"column:access_token;type:text" json:"-"`
	RefreshToken string    `gorm:"column:refresh_token;size:500;index" json:"-"`
	ExpiresAt    int64     `gorm:"column:expires_at" json:"expires_at"`
	APIKey       string    `gorm:"column:api_key;size:191" json:"-"`
	ProfileID    string    `gorm:"column:profile_id;size:191" json:"profile_id"`
	OrgName      string    `gorm:"column:org_name;size:191" json:"org_name"`
	Enabled      bool      `gorm:"column:enabled;default:true" json:"enabled"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Credential) TableName() string {
	return "credentials"
}

// Expired reports whether the access token has fully expired at t.
func (c *Credential) Expired(t time.Time) bool {
	return c.ExpiresAt > 0 && c.ExpiresAt <= t.Unix()
}
