package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ORAITApps/attachment-migrator/internal/auth"
	"github.com/ORAITApps/attachment-migrator/internal/logger"
	"github.com/ORAITApps/attachment-migrator/internal/processor"
	"github.com/ORAITApps/attachment-migrator/internal/report"
)

const EnvPrefix = "SFMIGRATE"

//go:embed defaults.yaml
var defaults []byte

type Config struct {
	APIVersion        string           `mapstructure:"api_version"`
	Workers           int              `mapstructure:"workers"`
	RequestsPerSecond float64          `mapstructure:"requests_per_second"`
	RequestTimeout    time.Duration    `mapstructure:"request_timeout"`
	Source            auth.Credentials `mapstructure:"source"`
	Target            auth.Credentials `mapstructure:"target"`
	Log               LogConfig        `mapstructure:"log"`
	Migration         processor.Plan   `mapstructure:"migration"`
	Report            ReportConfig     `mapstructure:"report"`
	SaveDir           string           `mapstructure:"save_dir"`
	MetricsFile       string           `mapstructure:"metrics_file"`
	GUI               bool             `mapstructure:"gui"`
	Open              bool             `mapstructure:"open"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// envKeys are read from the environment even though defaults.yaml leaves them unset.
var envKeys = []string{
	"source.domain", "source.client_id", "source.client_secret", "source.username", "source.password",
	"target.domain", "target.client_id", "target.client_secret", "target.username", "target.password",
}

// FlagKeys maps CLI flag names to configuration keys.
var FlagKeys = map[string]string{
	"api-version":      "api_version",
	"workers":          "workers",
	"rate":             "requests_per_second",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"parent-query":     "migration.parent_query",
	"attachment-query": "migration.attachment_query",
	"parent-type":      "migration.parent_object_type",
	"save-dir":         "save_dir",
	"report":           "report.path",
	"report-format":    "report.format",
	"metrics-file":     "metrics_file",
	"gui":              "gui",
	"open":             "open",
}

// Load merges, lowest precedence first: embedded defaults, the config file at path (if
// any), SFMIGRATE_* environment variables, and flags explicitly set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to merge embedded configuration: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source org: %w", err)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target org: %w", err)
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return fmt.Errorf("api_version is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if _, err := logger.New(logger.Level(c.Log.Level), logger.Format(c.Log.Format)); err != nil {
		return err
	}
	if _, err := report.NewExporter(c.Report.Format); err != nil {
		return err
	}
	return c.Migration.Validate()
}
