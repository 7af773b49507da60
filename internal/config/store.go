package config

import (
	"github.com/solarisfi/sor-engine/internal/common"
)

type StoreConfig struct {
	// DBPath is the path to the BoltDB file for pool persistence.
	// Default: "./data/sor-engine.db"
	DBPath string

	// PersistenceEnabled controls whether pools are persisted to disk.
	// Default: true
	PersistenceEnabled bool

	// PersistInterval is how often pools are batch-saved to disk (in seconds).
	// Default: 30
	PersistInterval int
}

func (c *StoreConfig) Key() string {
	return STORE_CONFIG_KEY
}

func (c *StoreConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("STORE_DB_PATH", "./data/sor-engine.db")
	c.PersistenceEnabled = common.GetEnvOrDefaultBool("STORE_PERSISTENCE_ENABLED", true)
	c.PersistInterval = common.GetEnvOrDefaultInt("STORE_PERSIST_INTERVAL", 30)
	return nil
}

func (c *StoreConfig) Validate() error {
	return nil
}
