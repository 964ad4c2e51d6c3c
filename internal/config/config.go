package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Signing  SigningConfig
	Checkout CheckoutConfig
	Refresh  RefreshConfig
}

type ServerConfig struct {
	Port      int
	Env       string // "development", "production"
	PublicURL string // external base URL used to build return/webhook URLs
	APIKey    string // Token header for the merchant API
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// GatewayConfig holds the QPayPro API endpoints and the operator-wide
// OAuth client credentials used for the connect flow and token refresh.
type GatewayConfig struct {
	APIBaseURL    string
	AuthBaseURL   string
	ClientID      string
	ClientSecret  string
	WebhookSecret string // optional; when set, webhook calls must present it
	Testmode      bool
}

type SigningConfig struct {
	Secret string
}

type CheckoutConfig struct {
	FingerprintHost string // device-fingerprint vendor host
	SessionTTL      time.Duration
}

type RefreshConfig struct {
	Spec      string // cron spec for the token refresh job
	SweepSpec string // cron spec for the stale-payment sweep
	Lookahead time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("GATEWAY_API_URL", "https://api.qpaypro.com/v2")
	viper.SetDefault("GATEWAY_AUTH_URL", "https://www.qpaypro.com")
	viper.SetDefault("GATEWAY_TESTMODE", false)
	viper.SetDefault("FINGERPRINT_HOST", "https://h.online-metrix.net")
	viper.SetDefault("SESSION_TTL", "2h")
	viper.SetDefault("REFRESH_CRON", "0 */15 * * * *")
	viper.SetDefault("SWEEP_CRON", "0 */10 * * * *")
	viper.SetDefault("REFRESH_LOOKAHEAD", "600s")

	sessionTTL, err := time.ParseDuration(viper.GetString("SESSION_TTL"))
	if err != nil {
		sessionTTL = 2 * time.Hour
	}
	lookahead, err := time.ParseDuration(viper.GetString("REFRESH_LOOKAHEAD"))
	if err != nil {
		lookahead = 600 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetInt("APP_PORT"),
			Env:       viper.GetString("APP_ENV"),
			PublicURL: viper.GetString("APP_PUBLIC_URL"),
			APIKey:    viper.GetString("APP_API_KEY"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Gateway: GatewayConfig{
			APIBaseURL:    viper.GetString("GATEWAY_API_URL"),
			AuthBaseURL:   viper.GetString("GATEWAY_AUTH_URL"),
			ClientID:      viper.GetString("GATEWAY_CLIENT_ID"),
			ClientSecret:  viper.GetString("GATEWAY_CLIENT_SECRET"),
			WebhookSecret: viper.GetString("GATEWAY_WEBHOOK_SECRET"),
			Testmode:      viper.GetBool("GATEWAY_TESTMODE"),
		},
		Signing: SigningConfig{
			Secret: viper.GetString("SIGNING_SECRET"),
		},
		Checkout: CheckoutConfig{
			FingerprintHost: viper.GetString("FINGERPRINT_HOST"),
			SessionTTL:      sessionTTL,
		},
		Refresh: RefreshConfig{
			Spec:      viper.GetString("REFRESH_CRON"),
			SweepSpec: viper.GetString("SWEEP_CRON"),
			Lookahead: lookahead,
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Signing.Secret == "" {
		log.Println("WARNING: SIGNING_SECRET is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
