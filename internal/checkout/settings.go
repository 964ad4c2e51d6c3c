package checkout

// SettingsStore is the slice of the setting repository the resolver
// consumes.
type SettingsStore interface {
	GetTenant(tenantID, name string) (string, error)
	GetGlobal(name string) (string, error)
}

// Settings is the resolved gateway configuration for one tenant. Each
// field is looked up in the tenant scope first and falls back to the
// operator-wide scope, resolved once per request and passed explicitly.
type Settings struct {
	Login      string
	PrivateKey string
	APISecret  string
	Endpoint   string
	OrgID      string
	Country    string
	State      string
	City       string
	Zip        string
	Address    string
}

// Setting keys shared by the tenant and global scopes.
const (
	KeyLogin      = "x_login"
	KeyPrivateKey = "x_private_key"
	KeyAPISecret  = "x_api_secret"
	KeyEndpoint   = "x_endpoint"
	KeyOrgID      = "x_org_id"
	KeyCountry    = "x_country"
	KeyState      = "x_state"
	KeyCity       = "x_city"
	KeyZip        = "x_zip"
	KeyAddress    = "x_address"
)

// ResolveSettings builds the two-tier settings view for a tenant.
func ResolveSettings(store SettingsStore, tenantID string) (*Settings, error) {
	s := &Settings{}
	fields := []struct {
		key string
		dst *string
	}{
		{KeyLogin, &s.Login},
		{KeyPrivateKey, &s.PrivateKey},
		{KeyAPISecret, &s.APISecret},
		{KeyEndpoint, &s.Endpoint},
		{KeyOrgID, &s.OrgID},
		{KeyCountry, &s.Country},
		{KeyState, &s.State},
		{KeyCity, &s.City},
		{KeyZip, &s.Zip},
		{KeyAddress, &s.Address},
	}

	for _, f := range fields {
		v, err := store.GetTenant(tenantID, f.key)
		if err != nil {
			return nil, err
		}
		if v == "" {
			v, err = store.GetGlobal(f.key)
			if err != nil {
				return nil, err
			}
		}
		*f.dst = v
	}
	return s, nil
}
