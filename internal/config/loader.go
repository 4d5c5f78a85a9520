package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FESTIVAL"

// Config captures the settings of the festival programs service.
type Config struct {
	HTTPPort  int
	SQLiteDSN string

	TokenSecret        string
	TokenTTL           time.Duration
	TokenIssuer        string
	TokenPurgeInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel       string
	LogDevelopment bool

	AdminUsername string
	AdminPassword string
}

// SeedAdmin reports whether a bootstrap administrator is configured.
func (c Config) SeedAdmin() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// Load reads configuration from FESTIVAL_* environment variables, falling
// back to the file named by FESTIVAL_CONFIG_FILE (any format viper reads)
// and then to defaults. Environment wins over the file.
//
// Missing and invalid entries are collected and reported together.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("http_port", "8080")
	v.SetDefault("sqlite_dsn", "festival.db")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("token_issuer", "festival-programs")
	v.SetDefault("token_purge_interval", "1h")
	v.SetDefault("redis_db", "0")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", "false")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"token_secret", "redis_addr", "redis_password", "admin_username", "admin_password"} {
		_ = v.BindEnv(key)
	}

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
	}

	cfg := Config{
		SQLiteDSN:     strings.TrimSpace(v.GetString("sqlite_dsn")),
		TokenSecret:   strings.TrimSpace(v.GetString("token_secret")),
		TokenIssuer:   strings.TrimSpace(v.GetString("token_issuer")),
		RedisAddr:     strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword: v.GetString("redis_password"),
		LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		AdminUsername: strings.TrimSpace(v.GetString("admin_username")),
		AdminPassword: v.GetString("admin_password"),
	}

	var missing, invalid []string
	envName := func(key string) string { return EnvPrefix + "_" + strings.ToUpper(key) }

	parseInt := func(key string, min int, dst *int) {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil || n < min {
			invalid = append(invalid, envName(key))
			return
		}
		*dst = n
	}
	parseDuration := func(key string, dst *time.Duration) {
		d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil || d <= 0 {
			invalid = append(invalid, envName(key))
			return
		}
		*dst = d
	}

	parseInt("http_port", 1, &cfg.HTTPPort)
	if cfg.HTTPPort > 65535 {
		invalid = append(invalid, envName("http_port"))
	}
	parseInt("redis_db", 0, &cfg.RedisDB)
	parseDuration("token_ttl", &cfg.TokenTTL)
	parseDuration("token_purge_interval", &cfg.TokenPurgeInterval)

	if dev, err := strconv.ParseBool(strings.TrimSpace(v.GetString("log_development"))); err != nil {
		invalid = append(invalid, envName("log_development"))
	} else {
		cfg.LogDevelopment = dev
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, envName("log_level"))
	}

	if cfg.SQLiteDSN == "" {
		missing = append(missing, envName("sqlite_dsn"))
	}
	switch {
	case cfg.TokenSecret == "":
		missing = append(missing, envName("token_secret"))
	case len(cfg.TokenSecret) < 32:
		invalid = append(invalid, envName("token_secret"))
	}
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		invalid = append(invalid, envName("admin_username")+"/"+envName("admin_password"))
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
