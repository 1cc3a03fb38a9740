package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. USERCENTER_DATABASE_HOST for database.host.
const EnvPrefix = "USERCENTER"

type Config struct {
	Env         string `mapstructure:"env" validate:"oneof=development production test"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	HTTPPort    int    `mapstructure:"http_port" validate:"min=1,max=65535"`
	GRPCPort    int    `mapstructure:"grpc_port" validate:"min=0,max=65535"` // 0 disables the gRPC listener
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	APIPrefix   string `mapstructure:"api_prefix" validate:"startswith=/"`

	JwtSecret string        `mapstructure:"jwt_secret" validate:"required"`
	JwtTTL    time.Duration `mapstructure:"jwt_ttl" validate:"gt=0"`

	Database DatabaseConfig `mapstructure:"database"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Range    RangeConfig    `mapstructure:"range"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=mysql postgres sqlite"`
	// DSN, when set, is passed to the driver as is and the discrete fields are ignored.
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"min=0,max=65535"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"min=0"`
	// Synchronize runs schema migration and role seeding on serve.
	Synchronize bool   `mapstructure:"synchronize"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=silent error warn info"`
}

type ConsulConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Address       string `mapstructure:"address"`
	AdvertiseHost string `mapstructure:"advertise_host"`
	CheckInterval string `mapstructure:"check_interval"`
	CheckTimeout  string `mapstructure:"check_timeout"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"` // empty disables event publishing
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type RangeConfig struct {
	Max int `mapstructure:"max" validate:"min=1"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var validate = validator.New()

// Load reads configuration for env. Sources, lowest precedence first:
// defaults, config.yaml, config.<env>.yaml, .env, .env.<env>, process environment.
// Missing files are not an error. When no search paths are given, "." and
// "./config" are searched.
func Load(env string, paths ...string) (*Config, error) {
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "development"
	}
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}

	// godotenv never overrides variables already set, so the env specific file goes first.
	for _, dir := range paths {
		for _, name := range []string{".env." + env, ".env"} {
			if err := godotenv.Load(dir + "/" + name); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading %s/%s: %w", dir, name, err)
			}
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, dir := range paths {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	v.Set("env", env)

	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	v.SetConfigName("config." + env)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading %s config file: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "user-center")
	v.SetDefault("http_port", 3000)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("api_prefix", "/api/v1")
	v.SetDefault("jwt_secret", "default-very-insecure-secret-key") // CHANGE THIS IN PRODUCTION
	v.SetDefault("jwt_ttl", 24*time.Hour)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "testdb")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.synchronize", false)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("consul.enabled", false)
	v.SetDefault("consul.address", "127.0.0.1:8500")
	v.SetDefault("consul.advertise_host", "127.0.0.1")
	v.SetDefault("consul.check_interval", "10s")
	v.SetDefault("consul.check_timeout", "1s")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "usercenter")

	v.SetDefault("range.max", 10000)
	v.SetDefault("audit.enabled", true)
}
