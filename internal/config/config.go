// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Path         string `yaml:"path"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Address != "" }

type EmailConfig struct {
	Provider           string `yaml:"provider"`
	SMTPhost           string `yaml:"smtp_host"`
	SMTPport           int    `yaml:"smtp_port"`
	SMTPuser           string `yaml:"smtp_user"`
	SMTPpassword       string `yaml:"smtp_password"`
	Sender             string `yaml:"sender"`
	SESRegion          string `yaml:"ses_region"`
	SendTimeoutSeconds int    `yaml:"send_timeout_seconds"`
}

type EsewaConfig struct {
	ProductCode           string `yaml:"product_code"`
	FormURL               string `yaml:"form_url"`
	StatusURL             string `yaml:"status_url"`
	VerifyWithGateway     bool   `yaml:"verify_with_gateway"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	SecretKey             string `yaml:"-"`
}

type ReconcileConfig struct {
	IntervalMinutes  int    `yaml:"interval_minutes"`
	NoticeWindowDays int    `yaml:"notice_window_days"`
	TriggerSecret    string `yaml:"-"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type Config struct {
	SiteName        string          `yaml:"site_name"`
	BaseURL         string          `yaml:"base_url"`
	Port            int             `yaml:"port"`
	AppEnv          string          `yaml:"app_env"`
	Database        DatabaseConfig  `yaml:"database"`
	Redis           RedisConfig     `yaml:"redis"`
	Email           EmailConfig     `yaml:"email"`
	Esewa           EsewaConfig     `yaml:"esewa"`
	Reconcile       ReconcileConfig `yaml:"reconcile"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	FirstAdminEmail string          `yaml:"-"`
	AdminSetupToken string          `yaml:"-"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// EmailSendTimeout bounds a single outbound notification.
func (c *Config) EmailSendTimeout() time.Duration {
	return time.Duration(c.Email.SendTimeoutSeconds) * time.Second
}

// ReconcileInterval is zero when the in-process scheduler is disabled.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalMinutes) * time.Minute
}

func getStringEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
		slog.Warn("Environment variable is not an integer, using default", "key", key, "value", valueStr)
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
		slog.Warn("Environment variable is not a boolean, using default", "key", key, "value", valueStr)
	}
	return defaultValue
}

func LoadConfig(filename string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			slog.Info("configs/.env not loaded, relying on process environment", "error", err)
		} else {
			slog.Info("Environment loaded from configs/.env")
		}
	}

	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("open config file '%s': %w", filename, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode YAML from '%s': %w", filename, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"app_env", cfg.AppEnv,
		"base_url", cfg.BaseURL,
		"port", cfg.Port,
		"email_provider", cfg.Email.Provider,
		"redis_enabled", cfg.Redis.Enabled(),
		"reconcile_interval", cfg.ReconcileInterval().String(),
	)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.AppEnv = getStringEnvOrDefault("APP_ENV", cfg.AppEnv)
	cfg.BaseURL = getStringEnvOrDefault("BASE_URL", cfg.BaseURL)
	cfg.Port = getIntEnvOrDefault("PORT", cfg.Port)

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.Path = dsn
		cfg.Database.Host = ""
	} else {
		cfg.Database.Host = getStringEnvOrDefault("DB_HOST", cfg.Database.Host)
		cfg.Database.Port = getIntEnvOrDefault("DB_PORT", cfg.Database.Port)
		cfg.Database.User = getStringEnvOrDefault("DB_USER", cfg.Database.User)
		cfg.Database.DBName = getStringEnvOrDefault("DB_NAME", cfg.Database.DBName)
	}
	// Secrets are taken from the environment only.
	cfg.Database.Password = getStringEnvOrDefault("DB_PASSWORD", "")

	cfg.Redis.Address = getStringEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getStringEnvOrDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getIntEnvOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Email.Provider = getStringEnvOrDefault("EMAIL_PROVIDER", cfg.Email.Provider)
	cfg.Email.SMTPhost = getStringEnvOrDefault("SMTP_HOST", cfg.Email.SMTPhost)
	cfg.Email.SMTPport = getIntEnvOrDefault("SMTP_PORT", cfg.Email.SMTPport)
	cfg.Email.SMTPuser = getStringEnvOrDefault("SMTP_USER", cfg.Email.SMTPuser)
	cfg.Email.SMTPpassword = getStringEnvOrDefault("SMTP_PASSWORD", "")
	cfg.Email.Sender = getStringEnvOrDefault("EMAIL_SENDER", cfg.Email.Sender)
	cfg.Email.SESRegion = getStringEnvOrDefault("AWS_REGION", cfg.Email.SESRegion)

	cfg.Esewa.ProductCode = getStringEnvOrDefault("ESEWA_PRODUCT_CODE", cfg.Esewa.ProductCode)
	cfg.Esewa.StatusURL = getStringEnvOrDefault("ESEWA_STATUS_URL", cfg.Esewa.StatusURL)
	cfg.Esewa.VerifyWithGateway = getBoolEnvOrDefault("ESEWA_VERIFY_WITH_GATEWAY", cfg.Esewa.VerifyWithGateway)
	cfg.Esewa.SecretKey = getStringEnvOrDefault("ESEWA_SECRET_KEY", "")

	cfg.Reconcile.IntervalMinutes = getIntEnvOrDefault("RECONCILE_INTERVAL_MINUTES", cfg.Reconcile.IntervalMinutes)
	cfg.Reconcile.TriggerSecret = getStringEnvOrDefault("RECONCILE_TRIGGER_SECRET", "")

	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		cfg.RateLimit.TrustedProxies = strings.Split(proxies, ",")
	}

	cfg.FirstAdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("FIRST_ADMIN_EMAIL")))
	cfg.AdminSetupToken = os.Getenv("ADMIN_SETUP_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "GymHub"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Redis.CacheTTLSeconds <= 0 {
		cfg.Redis.CacheTTLSeconds = 300
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "smtp"
	}
	if cfg.Email.SMTPport == 0 {
		cfg.Email.SMTPport = 587
	}
	if cfg.Email.SendTimeoutSeconds <= 0 {
		cfg.Email.SendTimeoutSeconds = 10
	}
	if cfg.Esewa.ProductCode == "" {
		cfg.Esewa.ProductCode = "EPAYTEST"
	}
	if cfg.Esewa.FormURL == "" {
		cfg.Esewa.FormURL = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
	}
	if cfg.Esewa.StatusURL == "" {
		cfg.Esewa.StatusURL = "https://rc.esewa.com.np/api/epay/transaction/status/"
	}
	if cfg.Esewa.RequestTimeoutSeconds <= 0 {
		cfg.Esewa.RequestTimeoutSeconds = 15
	}
	if cfg.Reconcile.NoticeWindowDays <= 0 {
		cfg.Reconcile.NoticeWindowDays = 3
	}
	if cfg.RateLimit.RPS <= 0 {
		cfg.RateLimit.RPS = 1
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
}

func validate(cfg *Config) error {
	isProduction := cfg.IsProduction()

	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url (BASE_URL) is not set")
	}
	if isProduction && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with https:// in production")
	}
	if cfg.Database.Path == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database connection is not configured (DATABASE_DSN or DB_HOST)")
	}
	if cfg.Database.Host != "" {
		if cfg.Database.User == "" {
			return fmt.Errorf("DB_USER is not set")
		}
		if cfg.Database.DBName == "" {
			return fmt.Errorf("DB_NAME is not set")
		}
		if isProduction && cfg.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
	}
	switch cfg.Email.Provider {
	case "smtp":
		if isProduction && (cfg.Email.SMTPhost == "" || cfg.Email.Sender == "") {
			slog.Warn("SMTP_HOST or EMAIL_SENDER not set for production, notifications will fail")
		}
	case "ses":
		if cfg.Email.SESRegion == "" {
			return fmt.Errorf("email.ses_region (AWS_REGION) is required for the ses provider")
		}
		if cfg.Email.Sender == "" {
			return fmt.Errorf("email.sender (EMAIL_SENDER) is required for the ses provider")
		}
	default:
		return fmt.Errorf("unknown email.provider %q (expected smtp or ses)", cfg.Email.Provider)
	}
	if cfg.Esewa.SecretKey == "" {
		if isProduction {
			return fmt.Errorf("ESEWA_SECRET_KEY must be set in production")
		}
		slog.Warn("ESEWA_SECRET_KEY is not set, eSewa signing is disabled")
	}
	if cfg.Reconcile.IntervalMinutes < 0 {
		return fmt.Errorf("reconcile.interval_minutes must not be negative")
	}
	return nil
}

func InitLogger(appEnv string) {
	var logger *slog.Logger
	logLevel := slog.LevelInfo

	if appEnv == "development" {
		logLevel = slog.LevelDebug
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: false,
		}))
	}
	slog.SetDefault(logger)
}
