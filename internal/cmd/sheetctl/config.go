// Package sheetctl implements the sheetctl command: a SQLite-backed reference
// host that upgrades stored sheets, rolls skills, and inspects the catalog.
package sheetctl

import (
	"fmt"
	"path/filepath"

	platformcmd "github.com/louisbranch/sheetkit/internal/platform/cmd"
	"github.com/louisbranch/sheetkit/internal/sheet/listener"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// Config holds sheetctl configuration. Env tags omit the SHEETKIT_ prefix.
type Config struct {
	DBPath           string `env:"DB_PATH"`
	CatalogPath      string `env:"CATALOG_PATH" envDefault:"catalog.yaml"`
	MigrationsScript string `env:"MIGRATIONS_SCRIPT"`
	MaxBatch         int    `env:"MAX_BATCH" envDefault:"20"`
	CleanRepeaters   bool   `env:"CLEAN_REPEATERS" envDefault:"false"`
	RepeaterClears   int    `env:"REPEATER_CLEARS" envDefault:"0"`
	FaultPolicy      string `env:"FAULT_POLICY" envDefault:"fail-fast"`
	Seed             int64  `env:"SEED" envDefault:"0"`
	Locale           string `env:"LOCALE" envDefault:"en-US"`
	Debug            bool   `env:"DEBUG" envDefault:"false"`
}

// ParseConfig reads SHEETKIT_* variables and fills derived defaults.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "sheets.db")
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot use.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog path is required")
	}
	if c.MaxBatch <= 0 || c.MaxBatch > store.DefaultMaxBatch {
		return fmt.Errorf("max batch must be between 1 and %d, got %d", store.DefaultMaxBatch, c.MaxBatch)
	}
	if c.RepeaterClears < 0 {
		return fmt.Errorf("repeater clears must not be negative, got %d", c.RepeaterClears)
	}
	if _, err := listener.ParseFaultPolicy(c.FaultPolicy); err != nil {
		return err
	}
	return nil
}
