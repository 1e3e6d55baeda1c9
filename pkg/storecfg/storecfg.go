// Package storecfg selects a prefs.Store from environment configuration,
// for hosts and examples that wire their storage backend at deploy time.
package storecfg

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/sqlitestore"
)

// Config describes the storage backend to open.
type Config struct {
	// Driver is one of "memory", "file" or "sqlite".
	Driver string `env:"PREFS_DRIVER" envDefault:"file"`
	// Path is the record directory for the file driver, or the database
	// file for the sqlite driver. The memory driver ignores it.
	Path string `env:"PREFS_PATH" envDefault:"."`
}

// ParseEnv loads a Config from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("storecfg: parse env: %w", err)
	}
	return cfg, nil
}

// Open constructs the configured Store. Stores returned by the sqlite
// driver hold a database handle; callers that care should type-assert
// io.Closer and close it on shutdown.
func (c Config) Open() (prefs.Store, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "memory":
		return prefs.NewMemoryStore(), nil
	case "file", "":
		return prefs.FileStore{Dir: c.Path}, nil
	case "sqlite":
		store, err := sqlitestore.Open(c.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storecfg: unknown driver %q", c.Driver)
	}
}
