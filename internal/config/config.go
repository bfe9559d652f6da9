// Package config loads settings from defaults, an optional config.yaml, a
// .env file and CHORELY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CHORELY"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Push     PushConfig     `mapstructure:"push"`
	Media    MediaConfig    `mapstructure:"media"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type RunnerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	HorizonDays int           `mapstructure:"horizon_days"`
	Workers     int           `mapstructure:"workers"`
}

type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
}

type MediaConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PublicURL string `mapstructure:"public_url"`
	MaxSize   int64  `mapstructure:"max_size"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// BackupConfig reuses the media bucket credentials unless Bucket is set.
type BackupConfig struct {
	Bucket        string        `mapstructure:"bucket"`
	Prefix        string        `mapstructure:"prefix"`
	Passphrase    string        `mapstructure:"passphrase"`
	Interval      time.Duration `mapstructure:"interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// Load reads the configuration. configFile may name a YAML file explicitly;
// otherwise config.yaml is looked up in . and ./config and may be absent.
// A .env file in the working directory never overrides the real environment.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Runner.HorizonDays < 0 {
		errs = append(errs, errors.New("runner.horizon_days must not be negative"))
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("push needs both vapid_public_key and vapid_private_key"))
	}
	if c.Backup.RetentionDays < 0 {
		errs = append(errs, errors.New("backup.retention_days must not be negative"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.path", "chorely.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("runner.interval", "1h")
	v.SetDefault("runner.horizon_days", 7)
	v.SetDefault("runner.workers", 4)

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subscriber", "mailto:noreply@chorely.app")

	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.region", "us-east-1")
	v.SetDefault("media.access_key", "")
	v.SetDefault("media.secret_key", "")
	v.SetDefault("media.public_url", "")
	v.SetDefault("media.max_size", 10<<20)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "chorely.events")

	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.prefix", "backups/")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.interval", "24h")
	v.SetDefault("backup.retention_days", 30)
}

// Getenv is a small helper for values read before Load, such as the config
// file path flag default.
func Getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
