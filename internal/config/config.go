// Package config holds the process-wide settings governing the compiler and
// matcher: recursion depth cap, compiler worker pool size, default rollback
// history depth, optional cache capacity, and the backing store for the
// persisted compiler cache. Modeled on server/config.go's typed-Database
// pattern, but exposed as atomics rather than a value threaded explicitly
// through every call, since max_recursion_depth in particular is read from
// arbitrarily deep matcher call stacks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
)

// Database names the backing store for the persisted compiler cache.
type Database string

const (
	DatabaseNone   Database = "none"
	DatabaseInMem  Database = "inmem"
	DatabaseSQLite Database = "sqlite"
)

func (d Database) String() string { return string(d) }

// ParseDatabase parses a connection string of the form "engine" or
// "engine:params" (only sqlite takes params: a data directory).
func ParseDatabase(s string) (Database, string, error) {
	parts := strings.SplitN(s, ":", 2)
	eng := strings.ToLower(strings.TrimSpace(parts[0]))

	var param string
	if len(parts) == 2 {
		param = strings.TrimSpace(parts[1])
	}

	switch Database(eng) {
	case DatabaseNone:
		if param != "" {
			return "", "", fmt.Errorf("'none' DB takes no parameters")
		}
		return DatabaseNone, "", nil
	case DatabaseInMem:
		if param != "" {
			return "", "", fmt.Errorf("'inmem' DB takes no parameters")
		}
		return DatabaseInMem, "", nil
	case DatabaseSQLite:
		if param == "" {
			return "", "", fmt.Errorf("'sqlite' DB requires a data directory after ':'")
		}
		return DatabaseSQLite, param, nil
	default:
		return "", "", fmt.Errorf("unknown DB engine %q, must be one of 'none', 'inmem', 'sqlite'", eng)
	}
}

// Config is the full set of process-wide tunables.
type Config struct {
	MaxRecursionDepth int
	MaxThreads        int
	MaxRollbackTokens int
	CacheCapacity     int
	DB                Database
	SQLiteDataDir     string
}

// FillDefaults returns a copy of cfg with zero-valued fields set to their
// defaults.
func (cfg Config) FillDefaults() Config {
	filled := cfg
	if filled.MaxRecursionDepth == 0 {
		filled.MaxRecursionDepth = 10000
	}
	if filled.MaxThreads == 0 {
		filled.MaxThreads = runtime.NumCPU()
	}
	if filled.MaxRollbackTokens == 0 {
		filled.MaxRollbackTokens = 256
	}
	if filled.DB == "" {
		filled.DB = DatabaseNone
	}
	return filled
}

// Validate returns an error if cfg has an invalid combination of fields.
func (cfg Config) Validate() error {
	if cfg.MaxRecursionDepth < 1 {
		return fmt.Errorf("max recursion depth must be positive, got %d", cfg.MaxRecursionDepth)
	}
	if cfg.MaxThreads < 1 {
		return fmt.Errorf("max threads must be positive, got %d", cfg.MaxThreads)
	}
	if cfg.MaxRollbackTokens < 0 {
		return fmt.Errorf("max rollback tokens must be non-negative, got %d", cfg.MaxRollbackTokens)
	}
	if cfg.CacheCapacity < 0 {
		return fmt.Errorf("cache capacity must be non-negative (0 means unbounded), got %d", cfg.CacheCapacity)
	}
	switch cfg.DB {
	case DatabaseNone, DatabaseInMem:
	case DatabaseSQLite:
		if cfg.SQLiteDataDir == "" {
			return fmt.Errorf("sqlite DB requires SQLiteDataDir to be set")
		}
	default:
		return fmt.Errorf("unknown DB engine %q", cfg.DB)
	}
	return nil
}

// current holds the live process-wide configuration as an atomic pointer so
// that Get/Set are lock-free and every in-flight matcher call sees a
// consistent, fully-formed Config rather than a torn read of its fields.
var current atomic.Pointer[Config]

func init() {
	d := Config{}.FillDefaults()
	current.Store(&d)
}

// Get returns the current process-wide configuration.
func Get() Config {
	return *current.Load()
}

// Set replaces the process-wide configuration wholesale. Callers that only
// want to change one field should start from Get().
func Set(cfg Config) {
	cp := cfg
	current.Store(&cp)
}
