package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HEROPETS_DATABASE_MODE.
const EnvPrefix = "HEROPETS"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Pets     PetsConfig     `mapstructure:"pets"`
	Legacy   LegacyConfig   `mapstructure:"legacy"`
}

type ServerConfig struct {
	Port     int      `mapstructure:"port"`
	Debug    bool     `mapstructure:"debug"`
	AdminKey string   `mapstructure:"admin_key"`
	AdminIPs []string `mapstructure:"admin_ips"` // empty allows any client address
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// JWTTTL of zero issues tokens without an expiry claim.
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// PetsConfig carries the vitals a newly created pet starts with.
type PetsConfig struct {
	DefaultHappiness int `mapstructure:"default_happiness"`
	DefaultHunger    int `mapstructure:"default_hunger"`
}

// LegacyConfig points at the pre-migration document store.
type LegacyConfig struct {
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Load reads config from the given YAML file path. An empty path skips the
// file and relies on defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/heropets.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl", "72h")
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("pets.default_happiness", 50)
	v.SetDefault("pets.default_hunger", 0)
	v.SetDefault("legacy.mongo_database", "test")
	v.SetDefault("legacy.connect_timeout", "10s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"server.admin_key",
		"database.mysql_dsn",
		"cache.redis_addr",
		"cache.redis_password",
		"cache.redis_db",
		"security.jwt_secret",
		"legacy.mongo_uri",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Mode {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required in sqlite mode")
		}
	case "mysql":
		if c.Database.MySQLDSN == "" {
			return errors.New("database.mysql_dsn is required in mysql mode")
		}
	default:
		return errors.New("database.mode must be sqlite or mysql")
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}
	if c.Security.JWTTTL < 0 {
		return errors.New("security.jwt_ttl must not be negative")
	}
	if !inPercentRange(c.Pets.DefaultHappiness) || !inPercentRange(c.Pets.DefaultHunger) {
		return errors.New("pets defaults must be within [0,100]")
	}
	return nil
}

func inPercentRange(v int) bool { return v >= 0 && v <= 100 }
