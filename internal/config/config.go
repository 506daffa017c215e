package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage providers accepted by STORAGE_PROVIDER.
const (
	StorageAuto       = "auto"
	StorageCloudinary = "cloudinary"
	StorageFirebase   = "firebase"
	StorageMemory     = "memory"
)

const defaultFirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	FrontendURL       string        `mapstructure:"FRONTEND_URL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	FirebaseProjectID string        `mapstructure:"FIREBASE_PROJECT_ID"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	TwilioAccountSID  string        `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string        `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber  string        `mapstructure:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL     string        `mapstructure:"TWILIO_BASE_URL"`
	StorageProvider   string        `mapstructure:"STORAGE_PROVIDER"`
	CloudinaryCloud   string        `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryKey     string        `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinarySecret  string        `mapstructure:"CLOUDINARY_API_SECRET"`
	FirebaseBucket    string        `mapstructure:"FIREBASE_STORAGE_BUCKET"`
	UploadMaxBytes    int64         `mapstructure:"UPLOAD_MAX_BYTES"`
	ReminderInterval  time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderGrace     time.Duration `mapstructure:"REMINDER_GRACE"`
	ReminderTimezone  string        `mapstructure:"REMINDER_TIMEZONE"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled        bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile       string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile        string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"FRONTEND_URL", "CORS_ORIGINS", "FIREBASE_PROJECT_ID", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_BASE_URL",
	"STORAGE_PROVIDER", "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
	"FIREBASE_STORAGE_BUCKET", "UPLOAD_MAX_BYTES",
	"REMINDER_INTERVAL", "REMINDER_GRACE", "REMINDER_TIMEZONE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_JWKS_URL", defaultFirebaseJWKSURL)
	v.SetDefault("TWILIO_BASE_URL", "https://api.twilio.com")
	v.SetDefault("STORAGE_PROVIDER", StorageAuto)
	v.SetDefault("UPLOAD_MAX_BYTES", 10*1024*1024)
	v.SetDefault("REMINDER_INTERVAL", time.Minute)
	v.SetDefault("REMINDER_GRACE", 60*time.Second)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.UseDevAuth() {
		log.Println("WARNING: FIREBASE_PROJECT_ID is not set; DevAuthMiddleware is active.")
		log.Println("WARNING: Requests are attributed to the X-Dev-User header or \"dev-user\".")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseDevAuth reports whether bearer tokens are skipped in favor of the
// permissive development middleware.
func (c *Config) UseDevAuth() bool {
	return c.IsDev() && c.FirebaseProjectID == "" && c.AuthSigningKey == ""
}

// FirebaseIssuer is the issuer claim carried by Firebase ID tokens for the project.
func (c *Config) FirebaseIssuer() string {
	if c.FirebaseProjectID == "" {
		return ""
	}
	return "https://securetoken.google.com/" + c.FirebaseProjectID
}

// TwilioConfigured reports whether all three Twilio credentials are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// ResolvedStorageProvider picks the blob backend. In auto mode Cloudinary wins
// when its cloud name is set, then Firebase Storage, then the in-memory store
// (development only).
func (c *Config) ResolvedStorageProvider() string {
	switch c.StorageProvider {
	case StorageCloudinary, StorageFirebase, StorageMemory:
		return c.StorageProvider
	}
	if c.CloudinaryCloud != "" {
		return StorageCloudinary
	}
	if c.FirebaseBucket != "" || !c.IsDev() {
		return StorageFirebase
	}
	return StorageMemory
}

// ReminderLocation resolves REMINDER_TIMEZONE, falling back to the process
// local zone.
func (c *Config) ReminderLocation() *time.Location {
	if c.ReminderTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks that the configuration is safe to run. Outside development
// FIREBASE_PROJECT_ID must be set so that ID tokens are verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.FirebaseProjectID == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID must be set when ENV=%q; refusing to start without token verification", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY must not be used in production")
	}

	switch c.StorageProvider {
	case "", StorageAuto, StorageCloudinary, StorageFirebase, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be one of auto, cloudinary, firebase, memory, got %q", c.StorageProvider)
	}
	if c.ResolvedStorageProvider() == StorageCloudinary && (c.CloudinaryKey == "" || c.CloudinarySecret == "") {
		return fmt.Errorf("CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required with cloudinary storage")
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	if c.ReminderGrace < 0 {
		return fmt.Errorf("REMINDER_GRACE must not be negative")
	}
	if c.ReminderTimezone != "" {
		if _, err := time.LoadLocation(c.ReminderTimezone); err != nil {
			return fmt.Errorf("REMINDER_TIMEZONE is invalid: %w", err)
		}
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
