package models

// TenantSetting maps to the `tenant_settings` table. Key-value settings
// scoped to a single tenant; missing keys fall back to GlobalSetting.
type TenantSetting struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:191;uniqueIndex:idx_tenant_name" json:"tenant_id"`
	Name     string `gorm:"column:name;size:191;uniqueIndex:idx_tenant_name" json:"name"`
	Value    string `gorm:"column:value;type:text" json:"value"`
}

func (TenantSetting) TableName() string {
	return "tenant_settings"
}

// GlobalSetting maps to the `global_settings` table. Operator-wide
// defaults shared by all tenants.
type GlobalSetting struct {
	Name  string `gorm:"column:name;primaryKey;size:191" json:"name"`
	Value string `gorm:"column:value;type:text" json:"value"`
}

func (GlobalSetting) TableName() string {
	return "global_settings"
}
