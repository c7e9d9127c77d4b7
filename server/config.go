package server

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dekarrin/gramask/internal/config"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/dao/inmem"
	"github.com/dekarrin/gramask/server/dao/sqlite"
)

const (
	MaxSecretSize = 64
	MinSecretSize = 32
)

// Database contains configuration settings for connecting to a persistence
// layer.
type Database struct {
	// Type is the engine the config refers to. It also determines which of
	// its other fields are valid.
	Type config.Database

	// DataDir is the path on disk to a directory to use to store data in.
	// This is only applicable for certain DB types: SQLite.
	DataDir string
}

// Connect performs all logic needed to connect to the configured DB and
// initialize the store for use.
func (db Database) Connect() (dao.Store, error) {
	switch db.Type {
	case config.DatabaseInMem:
		return inmem.NewDatastore(), nil
	case config.DatabaseSQLite:
		err := os.MkdirAll(db.DataDir, 0770)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		store, err := sqlite.NewDatastore(db.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}

		return store, nil
	case config.DatabaseNone:
		return nil, fmt.Errorf("cannot connect to 'none' DB")
	default:
		return nil, fmt.Errorf("unknown database type: %q", db.Type.String())
	}
}

// Validate returns an error if the Database does not have the correct
// fields set.
func (db Database) Validate() error {
	switch db.Type {
	case config.DatabaseInMem:
		// nothing else to check
		return nil
	case config.DatabaseSQLite:
		if db.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
		return nil
	case config.DatabaseNone:
		return fmt.Errorf("'none' DB is not valid")
	default:
		return fmt.Errorf("unknown database type: %q", db.Type.String())
	}
}

// ParseDBConnString parses a database connection string of the form
// "engine:params" (or just "engine" if no other params are required) into a
// valid Database config object. For example, "sqlite:/data" would give a
// config that stores persistence in files located in the given dir, and
// "inmem" would give an entirely in-memory config.
func ParseDBConnString(s string) (Database, error) {
	eng, param, err := config.ParseDatabase(s)
	if err != nil {
		return Database{}, err
	}
	if eng == config.DatabaseNone {
		return Database{}, fmt.Errorf("cannot specify DB engine 'none' (perhaps you wanted 'inmem'?)")
	}
	return Database{Type: eng, DataDir: param}, nil
}

// Config is a configuration for a server. It contains all parameters that
// can be used to configure the operation of a Server.
type Config struct {

	// TokenSecret is the secret used for signing tokens. If not provided, a
	// default key is used.
	TokenSecret []byte

	// DB is the configuration to use for connecting to the database. If not
	// provided, it will be set to a configuration for using an in-memory
	// persistence layer.
	DB Database

	// UnauthDelayMillis is the amount of additional time to wait (in
	// milliseconds) before sending a response that indicates either that
	// the client was unauthorized or the client was unauthenticated. This
	// is something of an "anti-flood" measure for naive clients attempting
	// non-parallel connections. If not set it will default to 1 second
	// (1000ms). Set this to any negative number to disable the delay.
	UnauthDelayMillis int
}

// UnauthDelay returns the configured time for the UnauthDelay as a
// time.Duration. If cfg.UnauthDelayMillis is set to a number less than 0,
// this will return a zero-valued time.Duration.
func (cfg Config) UnauthDelay() time.Duration {
	if cfg.UnauthDelayMillis < 1 {
		var dur time.Duration
		return dur
	}
	return time.Millisecond * time.Duration(cfg.UnauthDelayMillis)
}

// FillDefaults returns a new Config identical to cfg but with unset values
// set to their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.TokenSecret == nil {
		newCFG.TokenSecret = []byte("DEFAULT_TOKEN_SECRET-DO_NOT_USE_IN_PROD!")
	}
	if newCFG.DB.Type == config.DatabaseNone || newCFG.DB.Type == "" {
		newCFG.DB = Database{Type: config.DatabaseInMem}
	}
	if newCFG.UnauthDelayMillis == 0 {
		newCFG.UnauthDelayMillis = 1000
	}

	return newCFG
}

// Validate returns an error if the Config has invalid field values set.
// Empty and unset values are considered invalid; if defaults are intended
// to be used, call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if len(cfg.TokenSecret) < MinSecretSize {
		return fmt.Errorf("token secret: must be at least %d bytes, but is %d", MinSecretSize, len(cfg.TokenSecret))
	}
	if len(cfg.TokenSecret) > MaxSecretSize {
		return fmt.Errorf("token secret: must be no more than %d bytes, but is %d", MaxSecretSize, len(cfg.TokenSecret))
	}
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	// all possible values for UnauthDelayMillis are valid, so no need to
	// check it

	return nil
}

// marshaledConfig is the TOML form of a server config file.
type marshaledConfig struct {
	Listen            string `toml:"listen"`
	TokenSecret       string `toml:"secret"`
	DB                string `toml:"db"`
	UnauthDelayMillis int    `toml:"unauth_delay_millis"`

	MaxRecursionDepth int `toml:"max_recursion_depth"`
	MaxThreads        int `toml:"max_threads"`
	MaxRollbackTokens int `toml:"max_rollback_tokens"`
	CacheCapacity     int `toml:"cache_capacity"`
}

// LoadConfigFromFile reads a TOML server config file. It returns the server
// Config along with the listen address from the file ("" if not given). As
// a side effect it applies any compiler/matcher tunables in the file to the
// process-wide config.
func LoadConfigFromFile(path string) (Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, "", err
	}

	var mc marshaledConfig
	if err := toml.Unmarshal(data, &mc); err != nil {
		return Config{}, "", fmt.Errorf("%s: TOML syntax error: %w", path, err)
	}

	cfg := Config{
		UnauthDelayMillis: mc.UnauthDelayMillis,
	}
	if mc.TokenSecret != "" {
		cfg.TokenSecret = []byte(mc.TokenSecret)
	}
	if mc.DB != "" {
		cfg.DB, err = ParseDBConnString(mc.DB)
		if err != nil {
			return Config{}, "", fmt.Errorf("%s: db: %w", path, err)
		}
	}

	procCfg := config.Get()
	if mc.MaxRecursionDepth > 0 {
		procCfg.MaxRecursionDepth = mc.MaxRecursionDepth
	}
	if mc.MaxThreads > 0 {
		procCfg.MaxThreads = mc.MaxThreads
	}
	if mc.MaxRollbackTokens > 0 {
		procCfg.MaxRollbackTokens = mc.MaxRollbackTokens
	}
	if mc.CacheCapacity > 0 {
		procCfg.CacheCapacity = mc.CacheCapacity
	}
	config.Set(procCfg)

	return cfg, mc.Listen, nil
}
