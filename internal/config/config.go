package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/stockline/stockline/internal/logging"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port          int    `envconfig:"PORT" default:"8080"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`
	LogFile       string `envconfig:"LOG_FILE" default:""`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int    `envconfig:"DB_MAX_CONNS" default:"0"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	Version             string        `envconfig:"VERSION" default:"dev"`
	BcryptCost          int           `envconfig:"BCRYPT_COST" default:"12"`
	APIKeyTTL           time.Duration `envconfig:"API_KEY_TTL" default:"0s"`
	BootstrapAdminEmail string        `envconfig:"BOOTSTRAP_ADMIN_EMAIL" default:"admin@stockline.local"`
	MaxImportBytes      int64         `envconfig:"MAX_IMPORT_BYTES" default:"10485760"`
	MetricsNamespace    string        `envconfig:"METRICS_PREFIX" default:"stockline"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Logging returns the logger options described by cfg.
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}
