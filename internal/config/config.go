package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Stakes    StakesConfig    `mapstructure:"stakes"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
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

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Reconcile string `mapstructure:"reconcile"`
}

// FeesConfig holds the default fee rates snapshotted onto a market at
// creation time. Changing them later never affects existing markets.
type FeesConfig struct {
	PlatformBps int64 `mapstructure:"platform_bps"`
	CreatorBps  int64 `mapstructure:"creator_bps"`
}

type TreasuryConfig struct {
	PlatformAccountID string `mapstructure:"platform_account_id"`
}

type ReconcileConfig struct {
	GraceWindow time.Duration `mapstructure:"grace_window"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type StakesConfig struct {
	MinStakeCents int64 `mapstructure:"min_stake_cents"`
	MaxStakeCents int64 `mapstructure:"max_stake_cents"`
}

type RealtimeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FCZ")
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
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.reconcile", "@every 5m")
	v.SetDefault("fees.platform_bps", 250)
	v.SetDefault("fees.creator_bps", 100)
	v.SetDefault("treasury.platform_account_id", "treasury:platform")
	v.SetDefault("reconcile.grace_window", "10m")
	v.SetDefault("reconcile.batch_size", 200)
	v.SetDefault("stakes.min_stake_cents", 100)
	v.SetDefault("stakes.max_stake_cents", 100000000)
	v.SetDefault("realtime.enabled", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
