package reqpipe

import (
	"path/filepath"
	"strings"

	"github.com/loykin/reqpipe/internal/store"
)

type Store = store.Store
type Execution = store.Execution
type SqliteConfig = store.SqliteConfig
type PostgresConfig = store.PostgresConfig

const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
	// StoreDBFileName is the default sqlite file name for execution history.
	StoreDBFileName = store.DbFileName
)

// StoreConfig selects the history backend.
type StoreConfig struct {
	Config store.Config
}

// OpenStoreFromOptions opens the history store described by cfg. A nil cfg, or a
// sqlite config without a path, uses StoreDBFileName under dir.
func OpenStoreFromOptions(dir string, cfg *StoreConfig) (*Store, error) {
	var c store.Config
	if cfg != nil {
		c = cfg.Config
	}
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" || driver == DriverSqlite {
		sc, _ := c.DriverConfig.(*SqliteConfig)
		if sc == nil || strings.TrimSpace(sc.Path) == "" {
			c.Driver = DriverSqlite
			c.DriverConfig = &SqliteConfig{Path: filepath.Join(dir, StoreDBFileName)}
		}
	}
	return store.Open(c)
}
