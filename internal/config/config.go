package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/extractor"
	"github.com/sells-group/outreach-cli/internal/record"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Harvest   HarvestConfig   `yaml:"harvest" mapstructure:"harvest"`
	Messenger MessengerConfig `yaml:"messenger" mapstructure:"messenger"`
	Dispatch  DispatchConfig  `yaml:"dispatch" mapstructure:"dispatch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backends. Path is the SQLite file
// holding job state; DatabaseURL optionally moves the record store to
// Postgres.
type StoreConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DirectoryConfig selects and configures the listing source.
type DirectoryConfig struct {
	Kind        string              `yaml:"kind" mapstructure:"kind"` // "api" or "html"
	BaseURL     string              `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string              `yaml:"api_key" mapstructure:"api_key"`
	PageSize    int                 `yaml:"page_size" mapstructure:"page_size"`
	RateLimit   float64             `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int                 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchURL   string              `yaml:"search_url" mapstructure:"search_url"`
	Selectors   extractor.Selectors `yaml:"selectors" mapstructure:"selectors"`
}

// HarvestConfig configures harvest runs.
type HarvestConfig struct {
	MaxResults int                       `yaml:"max_results" mapstructure:"max_results"`
	Contact    record.ContactRequirement `yaml:"contact" mapstructure:"contact"`
}

// MessengerConfig holds the messaging gateway settings.
type MessengerConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DispatchConfig configures campaign sends.
type DispatchConfig struct {
	DelaySecs    int    `yaml:"delay_secs" mapstructure:"delay_secs"`
	TemplateFile string `yaml:"template_file" mapstructure:"template_file"`
}

// Delay returns the pacing delay between recipients.
func (c DispatchConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs) * time.Second
}

// ServerConfig configures the HTTP control server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "outreach.db")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("directory.kind", "api")
	v.SetDefault("directory.page_size", 20)
	v.SetDefault("directory.rate_limit", 1.0)
	v.SetDefault("directory.timeout_secs", 30)
	v.SetDefault("harvest.max_results", 0)
	v.SetDefault("harvest.contact.phone", true)
	v.SetDefault("harvest.contact.whatsapp", true)
	v.SetDefault("harvest.contact.email", true)
	// Empty defaults register the keys so environment-only values survive
	// Unmarshal.
	v.SetDefault("store.database_url", "")
	v.SetDefault("directory.base_url", "")
	v.SetDefault("directory.api_key", "")
	v.SetDefault("directory.search_url", "")
	v.SetDefault("messenger.base_url", "")
	v.SetDefault("messenger.token", "")
	v.SetDefault("messenger.timeout_secs", 30)
	v.SetDefault("dispatch.delay_secs", 3)
	v.SetDefault("dispatch.template_file", "templates.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
