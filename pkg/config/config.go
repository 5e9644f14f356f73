package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/config"
)

var (
	once     sync.Once
	instance *Config
)

const (
	envFile           = "./configs/.env"
	defaultConfigPath = "./configs/config.yaml"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Streaks  StreaksConfig  `yaml:"streaks"`
	Client   ClientConfig   `yaml:"client"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Address        string        `yaml:"address"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	Address       string `yaml:"address"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DB            string `yaml:"db"`
	SSLMode       string `yaml:"ssl_mode"`
	MaxConns      int32  `yaml:"max_conns"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// Empty Addr turns token revocation off.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type StreaksConfig struct {
	Timezone          string        `yaml:"timezone"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

type ClientConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	KeyringService string        `yaml:"keyring_service"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// New loads configs/.env into the environment once and then reads the YAML
// config pointed to by CONFIG_PATH. Any failure is fatal.
func New() *Config {
	once.Do(func() {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Fatal("loading envs error: ", err)
		}
		instance, err = Load(getEnv("CONFIG_PATH", defaultConfigPath))
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

// Load reads YAML config at path, expanding ${VAR:default} from environment.
func Load(path string) (*Config, error) {
	provider, err := config.NewYAML(
		config.File(path),
		config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, errors.New("creating config provider error: " + err.Error())
	}
	var cfg Config
	if err = provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, errors.New("populating config error: " + err.Error())
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) GetString(key string) string {
	return os.Getenv(key)
}

// Location resolves the streaks timezone. Unknown names fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Streaks.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) setDefaults() {
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 10 * time.Second
	}
	if c.JWT.TokenTTL <= 0 {
		c.JWT.TokenTTL = time.Hour
	}
	if c.Streaks.ReconcileInterval <= 0 {
		c.Streaks.ReconcileInterval = time.Hour
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = 10 * time.Second
	}
	if c.Client.KeyringService == "" {
		c.Client.KeyringService = "habitstreak"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
