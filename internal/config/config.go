package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDataDir               = "COMICSTORE_DATA_DIR"
	EnvCatalogFile           = "COMICSTORE_CATALOG_FILE"
	EnvUsersFile             = "COMICSTORE_USERS_FILE"
	EnvReservationsFile      = "COMICSTORE_RESERVATIONS_FILE"
	EnvSnapshotPrefix        = "COMICSTORE_SNAPSHOT_PREFIX"
	EnvExclusiveReservations = "COMICSTORE_EXCLUSIVE_RESERVATIONS"
	EnvLogLevel              = "COMICSTORE_LOG_LEVEL"
	EnvLogFormat             = "COMICSTORE_LOG_FORMAT"
	EnvRedisURL              = "COMICSTORE_REDIS_URL"
	EnvRedisAddr             = "COMICSTORE_REDIS_ADDR"
	EnvMySQLDSN              = "COMICSTORE_MYSQL_DSN"
	EnvMetricsTextfile       = "COMICSTORE_METRICS_TEXTFILE"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Redis   RedisConfig
	MySQL   MySQLConfig
	Metrics MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	LogLevel  string `envconfig:"COMICSTORE_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"COMICSTORE_LOG_FORMAT" default:"console"`
	// ExclusiveReservations rejects a reservation of an item code that is already reserved.
	ExclusiveReservations bool `envconfig:"COMICSTORE_EXCLUSIVE_RESERVATIONS" default:"false"`
}

type StorageConfig struct {
	DataDir          string `envconfig:"COMICSTORE_DATA_DIR" default:"."`
	CatalogFile      string `envconfig:"COMICSTORE_CATALOG_FILE" default:"comics.csv"`
	UsersFile        string `envconfig:"COMICSTORE_USERS_FILE" default:"users.txt"`
	ReservationsFile string `envconfig:"COMICSTORE_RESERVATIONS_FILE" default:"reservations.txt"`
	SnapshotPrefix   string `envconfig:"COMICSTORE_SNAPSHOT_PREFIX" default:"comics"`
}

func (s StorageConfig) CatalogPath() string {
	return s.resolve(s.CatalogFile)
}

func (s StorageConfig) UsersPath() string {
	return s.resolve(s.UsersFile)
}

func (s StorageConfig) ReservationsPath() string {
	return s.resolve(s.ReservationsFile)
}

func (s StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

func (s StorageConfig) validate() error {
	missing := []string{}
	if strings.TrimSpace(s.CatalogFile) == "" {
		missing = append(missing, EnvCatalogFile)
	}
	if strings.TrimSpace(s.UsersFile) == "" {
		missing = append(missing, EnvUsersFile)
	}
	if strings.TrimSpace(s.ReservationsFile) == "" {
		missing = append(missing, EnvReservationsFile)
	}
	if strings.TrimSpace(s.SnapshotPrefix) == "" {
		missing = append(missing, EnvSnapshotPrefix)
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage config missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RedisConfig is optional; the stock and ranking mirror is disabled when neither URL nor address is set.
type RedisConfig struct {
	URL      string `envconfig:"COMICSTORE_REDIS_URL"`
	Address  string `envconfig:"COMICSTORE_REDIS_ADDR"`
	Password string `envconfig:"COMICSTORE_REDIS_PASSWORD"`
	DB       int    `envconfig:"COMICSTORE_REDIS_DB" default:"0"`
	PoolSize int    `envconfig:"COMICSTORE_REDIS_POOL_SIZE" default:"10"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// MySQLConfig is optional; the activity audit mirror is disabled without a DSN.
type MySQLConfig struct {
	DSN          string `envconfig:"COMICSTORE_MYSQL_DSN"`
	MaxOpenConns int    `envconfig:"COMICSTORE_MYSQL_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns int    `envconfig:"COMICSTORE_MYSQL_MAX_IDLE_CONNS" default:"2"`
}

func (m MySQLConfig) Enabled() bool {
	return m.DSN != ""
}

type MetricsConfig struct {
	TextfilePath string `envconfig:"COMICSTORE_METRICS_TEXTFILE"`
}
