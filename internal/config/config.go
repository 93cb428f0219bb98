package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"litequery/internal/platform/sqlite"
	"litequery/internal/shared"
)

// Config holds application configuration values.
type Config struct {
	Env string `yaml:"env" validate:"required,oneof=dev prod"`
	DB  struct {
		Path        string        `yaml:"path"`
		BusyTimeout time.Duration `yaml:"busy_timeout" validate:"min=0"`
		WAL         bool          `yaml:"wal_mode"`
		ForeignKeys bool          `yaml:"foreign_keys"`
		BufferSize  int           `yaml:"buffer_size" validate:"min=1"`
		TxLockMode  string        `yaml:"tx_lock_mode" validate:"oneof=DEFERRED IMMEDIATE EXCLUSIVE"`
	} `yaml:"database"`
	Log struct {
		ConsoleLevel string `yaml:"console_level" validate:"required,oneof=debug info warn error"`
		FileLevel    string `yaml:"file_level" validate:"required,oneof=debug info warn error"`
		File         string `yaml:"file"`
	} `yaml:"logging"`
}

var validate = validator.New()

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE and environment variables, in that order of precedence
// from lowest to highest.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}

	c.Log.ConsoleLevel = strings.ToLower(c.Log.ConsoleLevel)
	c.Log.FileLevel = strings.ToLower(c.Log.FileLevel)
	c.DB.TxLockMode = strings.ToUpper(c.DB.TxLockMode)

	if err := validate.Struct(c); err != nil {
		return Config{}, shared.MarkKind(err, shared.KindConfig)
	}
	return c, nil
}

// DBOptions maps the database section onto handle options.
func (c Config) DBOptions() sqlite.DBOptions {
	opts := sqlite.DefaultDBOptions()
	opts.BusyTimeout = c.DB.BusyTimeout
	opts.WALMode = c.DB.WAL
	opts.ForeignKeys = c.DB.ForeignKeys
	opts.TxLockMode = sqlite.TxLockMode(c.DB.TxLockMode)
	return opts
}

func defaults() Config {
	var c Config
	c.Env = "prod"
	c.DB.BusyTimeout = 5 * time.Second
	c.DB.ForeignKeys = true
	c.DB.BufferSize = 100
	c.DB.TxLockMode = string(sqlite.TxLockImmediate)
	c.Log.ConsoleLevel = "info"
	c.Log.FileLevel = "debug"
	return c
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return shared.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return shared.Configf("parse config file %s: %v", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getenv("ENV", c.Env)
	c.DB.Path = getenv("DB_PATH", c.DB.Path)
	c.DB.TxLockMode = getenv("DB_TX_LOCK_MODE", c.DB.TxLockMode)
	c.Log.ConsoleLevel = getenv("LOG_CONSOLE_LEVEL", c.Log.ConsoleLevel)
	c.Log.FileLevel = getenv("LOG_FILE_LEVEL", c.Log.FileLevel)
	c.Log.File = getenv("LOG_FILE", c.Log.File)

	if v := os.Getenv("DB_BUSY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return shared.Configf("DB_BUSY_TIMEOUT: %v", err)
		}
		c.DB.BusyTimeout = d
	}
	if v := os.Getenv("DB_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return shared.Configf("DB_BUFFER_SIZE: %v", err)
		}
		c.DB.BufferSize = n
	}
	for name, dst := range map[string]*bool{"DB_WAL": &c.DB.WAL, "DB_FOREIGN_KEYS": &c.DB.ForeignKeys} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return shared.Configf("%s: %v", name, err)
			}
			*dst = b
		}
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

