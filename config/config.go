package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // market timezone must resolve in slim containers

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StorageConfig selects the persistence backend.
// "postgres" uses PostgreSQL + Redis, "memory" keeps everything in process.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type AuthConfig struct {
	AdminUsernames []string `mapstructure:"admin_usernames"`
}

// IsAdmin reports whether username is configured as an operator.
func (a AuthConfig) IsAdmin(username string) bool {
	for _, u := range a.AdminUsernames {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

// LedgerConfig holds the operator-adjustable wagering settings.
type LedgerConfig struct {
	MinStake          int64  `mapstructure:"min_stake"`
	PayoutRate        string `mapstructure:"payout_rate"`
	NumberDigits      int    `mapstructure:"number_digits"`
	Timezone          string `mapstructure:"timezone"`
	SessionCutoff     string `mapstructure:"session_cutoff"` // HH:MM, local market time
	MaxPlaceAttempts  int    `mapstructure:"max_place_attempts"`
	MaxSettleAttempts int    `mapstructure:"max_settle_attempts"`
	SettleWorkers     int    `mapstructure:"settle_workers"`
}

// PayoutRateDecimal parses PayoutRate.
func (l LedgerConfig) PayoutRateDecimal() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(l.PayoutRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing payout rate %q: %w", l.PayoutRate, err)
	}
	return rate, nil
}

// Location loads the market timezone.
func (l LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// CutoffMinutes returns SessionCutoff as minutes since midnight.
func (l LedgerConfig) CutoffMinutes() (int, error) {
	t, err := time.Parse("15:04", l.SessionCutoff)
	if err != nil {
		return 0, fmt.Errorf("parsing session cutoff %q: %w", l.SessionCutoff, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate rejects settings the ledger cannot run with.
func (l LedgerConfig) Validate() error {
	if l.MinStake <= 0 {
		return errors.New("ledger.min_stake must be positive")
	}
	rate, err := l.PayoutRateDecimal()
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return errors.New("ledger.payout_rate must be positive")
	}
	if l.NumberDigits < 1 || l.NumberDigits > 6 {
		return errors.New("ledger.number_digits must be between 1 and 6")
	}
	if l.MaxPlaceAttempts < 1 || l.MaxSettleAttempts < 1 {
		return errors.New("ledger retry attempts must be at least 1")
	}
	if l.SettleWorkers < 1 {
		return errors.New("ledger.settle_workers must be at least 1")
	}
	if _, err := l.Location(); err != nil {
		return err
	}
	if _, err := l.CutoffMinutes(); err != nil {
		return err
	}
	return nil
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WGL_ (Wager Ledger).
// Nested keys use underscore: WGL_DATABASE_HOST, WGL_LEDGER_MIN_STAKE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wager_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "./migrations/postgres")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wager-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("auth.admin_usernames", []string{})
	v.SetDefault("ledger.min_stake", 100)
	v.SetDefault("ledger.payout_rate", "80")
	v.SetDefault("ledger.number_digits", 2)
	v.SetDefault("ledger.timezone", "Asia/Yangon")
	v.SetDefault("ledger.session_cutoff", "12:00")
	v.SetDefault("ledger.max_place_attempts", 3)
	v.SetDefault("ledger.max_settle_attempts", 5)
	v.SetDefault("ledger.settle_workers", 8)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "wager.ledger.events")
	v.SetDefault("kafka.write_timeout", "5s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WGL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WGL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Ledger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	return &cfg, nil
}
