// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const EnvPrefix = "TASKHOST"

// Config holds all configuration for the task host.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	HttpListenAddr  string        `mapstructure:"http_listen_addr" validate:"required"`
	GrpcListenAddr  string        `mapstructure:"grpc_listen_addr" validate:"required"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	ExecutionStore string        `mapstructure:"execution_store" validate:"oneof=memory etcd redis sqlite"`
	EtcdEndpoints  []string      `mapstructure:"etcd_endpoints" validate:"required_if=ExecutionStore etcd"`
	EtcdTimeout    time.Duration `mapstructure:"etcd_timeout"`
	RedisAddr      string        `mapstructure:"redis_addr" validate:"required_if=ExecutionStore redis"`
	RedisDB        int           `mapstructure:"redis_db" validate:"gte=0"`
	SqlitePath     string        `mapstructure:"sqlite_path" validate:"required_if=ExecutionStore sqlite"`

	HttpAPI     HttpAPIConfig     `mapstructure:"http_api"`
	HttpWorker  HttpWorkerConfig  `mapstructure:"http_worker"`
	ShellWorker ShellWorkerConfig `mapstructure:"shell_worker"`

	Schedules []ScheduleConfig `mapstructure:"schedules" validate:"unique=Name,dive"`
}

// HttpAPIConfig controls what the producer API accepts. Shell orders run
// arbitrary commands, so the API refuses them unless AllowShell is set;
// configured schedules may use them either way.
type HttpAPIConfig struct {
	AllowShell bool `mapstructure:"allow_shell"`
}

type HttpWorkerConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RateLimit float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int           `mapstructure:"burst" validate:"gte=0"`
}

type ShellWorkerConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ScheduleConfig describes a recurring work order.
type ScheduleConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	CronExpr string `mapstructure:"cron_expr" validate:"required,cron"`
	Kind     string `mapstructure:"kind" validate:"required,oneof=http shell"`
	URL      string `mapstructure:"url" validate:"required_if=Kind http,omitempty,url"`
	Method   string `mapstructure:"method"`
	Command  string `mapstructure:"command" validate:"required_if=Kind shell"`
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewValidator returns a validator with the "cron" tag registered. The tag
// accepts six-field expressions with seconds, the format the scheduler uses.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		_, err := parser.Parse(fl.Field().String())
		return err == nil
	})
	return validate
}

// Load loads configuration from defaults, a YAML file and environment
// variables prefixed with TASKHOST_. An empty configFile searches for
// config.yaml in ./configs and the working directory; a missing file is not
// an error in that case.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50052")
	v.SetDefault("log_level", "info")
	v.SetDefault("execution_store", "memory")
	v.SetDefault("etcd_endpoints", []string{})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("sqlite_path", "")
	v.SetDefault("http_api.allow_shell", false)
	v.SetDefault("http_worker.timeout", "15s")
	v.SetDefault("http_worker.rate_limit", 0)
	v.SetDefault("http_worker.burst", 1)
	v.SetDefault("shell_worker.timeout", "30s")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; rely on defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := NewValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.ExecutionStore == "etcd" && len(cfg.EtcdEndpoints) == 0 {
		return nil, fmt.Errorf("invalid config: etcd_endpoints is required when execution_store is etcd")
	}
	return &cfg, nil
}
