package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"db"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Notification NotificationConfig `mapstructure:"notification"`
	Auth         AuthConfig         `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// CacheConfig selects the shared substrate for locks and rate counters.
// "memory" is only safe for a single instance.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type MonitorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	JobName       string        `mapstructure:"job_name"`
	Interval      time.Duration `mapstructure:"interval"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	EscalateAfter int           `mapstructure:"escalate_after"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Window      time.Duration `mapstructure:"window"`
	AuthLimit   int64         `mapstructure:"auth_limit"`
	APILimit    int64         `mapstructure:"api_limit"`
	GlobalLimit int64         `mapstructure:"global_limit"`
	AuthPrefix  string        `mapstructure:"auth_prefix"`
	APIPrefix   string        `mapstructure:"api_prefix"`
}

type NotificationConfig struct {
	ChannelTimeout time.Duration    `mapstructure:"channel_timeout"`
	Slack          SlackConfig      `mapstructure:"slack"`
	Telegram       TelegramConfig   `mapstructure:"telegram"`
	Resilience     ResilienceConfig `mapstructure:"resilience"`
}

type SlackConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	BotToken  string        `mapstructure:"bot_token"`
	BaseURL   string        `mapstructure:"base_url"`
	ParseMode string        `mapstructure:"parse_mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ResilienceConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpen     time.Duration `mapstructure:"breaker_open"`
}

type AuthConfig struct {
	JWTSecret string         `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration  `mapstructure:"token_ttl"`
	APIKeys   []APIKeyConfig `mapstructure:"api_keys"`
}

type APIKeyConfig struct {
	Key    string `mapstructure:"key"`
	UserID string `mapstructure:"user_id"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", "5s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.job_name", "alert-monitor")
	v.SetDefault("monitor.interval", "1m")
	v.SetDefault("monitor.lock_ttl", "2m")
	v.SetDefault("monitor.escalate_after", 5)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.auth_limit", 10)
	v.SetDefault("rate_limit.api_limit", 100)
	v.SetDefault("rate_limit.global_limit", 300)
	v.SetDefault("rate_limit.auth_prefix", "/api/auth")
	v.SetDefault("rate_limit.api_prefix", "/api")

	v.SetDefault("notification.channel_timeout", "10s")
	v.SetDefault("notification.slack.timeout", "5s")
	v.SetDefault("notification.telegram.bot_token", "")
	v.SetDefault("notification.telegram.base_url", "https://api.telegram.org")
	v.SetDefault("notification.telegram.parse_mode", "MarkdownV2")
	v.SetDefault("notification.telegram.timeout", "5s")
	v.SetDefault("notification.resilience.max_retries", 2)
	v.SetDefault("notification.resilience.initial_backoff", "200ms")
	v.SetDefault("notification.resilience.max_backoff", "2s")
	v.SetDefault("notification.resilience.breaker_failures", 5)
	v.SetDefault("notification.resilience.breaker_open", "30s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run safely with.
func (c Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("%w: monitor.interval must be positive", ErrInvalidConfig)
	}
	// A lock that expires before the tick ends lets another instance start the same tick.
	if c.Monitor.LockTTL <= c.Monitor.Interval {
		return fmt.Errorf("%w: monitor.lock_ttl (%s) must exceed monitor.interval (%s)",
			ErrInvalidConfig, c.Monitor.LockTTL, c.Monitor.Interval)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: rate_limit.window must be positive", ErrInvalidConfig)
		}
		if c.RateLimit.AuthLimit <= 0 || c.RateLimit.APILimit <= 0 || c.RateLimit.GlobalLimit <= 0 {
			return fmt.Errorf("%w: rate_limit limits must be positive", ErrInvalidConfig)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Cache.Backend)) {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	return nil
}
