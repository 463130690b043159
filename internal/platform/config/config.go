package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Encryption    EncryptionConfig    `mapstructure:"encryption"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	LoginPerMinute    int `mapstructure:"login_per_minute"`
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

// EngineConfig describes the external automation engine deployment.
// APIKey is the portal-wide fallback used when a client has no active
// credential of its own.
type EngineConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryMax    int           `mapstructure:"retry_max"`
	ServiceName string        `mapstructure:"service_name"`
}

type ReconcilerConfig struct {
	WindowDays  int           `mapstructure:"window_days"`
	Concurrency int           `mapstructure:"concurrency"`
	Interval    time.Duration `mapstructure:"interval"`
}

type MonitorConfig struct {
	WindowDays       int           `mapstructure:"window_days"`
	SuccessThreshold float64       `mapstructure:"success_threshold"`
	NotifyOnRecovery bool          `mapstructure:"notify_on_recovery"`
	Interval         time.Duration `mapstructure:"interval"`
}

// BillingConfig drives the invoice sweep. The beneficiary fields feed
// the payment QR on invoices and may be left empty to disable it.
type BillingConfig struct {
	ReminderDaysBefore int           `mapstructure:"reminder_days_before"`
	OverdueRepeatDays  int           `mapstructure:"overdue_repeat_days"`
	Interval           time.Duration `mapstructure:"interval"`
	BeneficiaryName    string        `mapstructure:"beneficiary_name"`
	IBAN               string        `mapstructure:"iban"`
	BIC                string        `mapstructure:"bic"`
}

type NotificationsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// EncryptionConfig holds the hex-encoded 32-byte key used to seal
// stored engine credentials.
type EncryptionConfig struct {
	CredentialKey string `mapstructure:"credential_key"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("rate_limit.login_per_minute", 10)
	viper.SetDefault("rate_limit.api_read_per_minute", 600)
	viper.SetDefault("rate_limit.api_write_per_minute", 120)
	viper.SetDefault("engine.timeout", "30s")
	viper.SetDefault("engine.retry_max", 2)
	viper.SetDefault("reconciler.window_days", 7)
	viper.SetDefault("reconciler.concurrency", 4)
	viper.SetDefault("reconciler.interval", "1h")
	viper.SetDefault("monitor.window_days", 7)
	viper.SetDefault("monitor.success_threshold", 0.80)
	viper.SetDefault("monitor.notify_on_recovery", true)
	viper.SetDefault("monitor.interval", "1h")
	viper.SetDefault("billing.reminder_days_before", 3)
	viper.SetDefault("billing.overdue_repeat_days", 7)
	viper.SetDefault("billing.interval", "24h")
	viper.SetDefault("notifications.timeout", "10s")
}

// Validate fails fast on values the batch jobs cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Reconciler.WindowDays < 1 {
		return fmt.Errorf("config: reconciler.window_days must be at least 1, got %d", c.Reconciler.WindowDays)
	}
	if c.Reconciler.Concurrency < 1 {
		return fmt.Errorf("config: reconciler.concurrency must be at least 1, got %d", c.Reconciler.Concurrency)
	}
	if c.Monitor.WindowDays < 1 {
		return fmt.Errorf("config: monitor.window_days must be at least 1, got %d", c.Monitor.WindowDays)
	}
	if c.Monitor.SuccessThreshold <= 0 || c.Monitor.SuccessThreshold > 1 {
		return fmt.Errorf("config: monitor.success_threshold must be in (0, 1], got %v", c.Monitor.SuccessThreshold)
	}
	if c.Billing.ReminderDaysBefore < 0 {
		return fmt.Errorf("config: billing.reminder_days_before must not be negative")
	}
	if c.Billing.OverdueRepeatDays < 1 {
		return fmt.Errorf("config: billing.overdue_repeat_days must be at least 1")
	}
	return nil
}
