package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/search"
)

// SearchFactory assembles the external search engine from configuration.
type SearchFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  core.Clock
}

// NewSearchFactory creates a new search factory.
func NewSearchFactory(cfg *config.Config, logger *zap.Logger, clock core.Clock) *SearchFactory {
	return &SearchFactory{cfg: cfg, logger: logger, clock: clock}
}

// CreateFilterCache builds the shared filter/custom-condition result cache.
func (f *SearchFactory) CreateFilterCache() (*cache.TTLCache, error) {
	ttl, err := f.cfg.GetDuration("cache.filter_ttl")
	if err != nil {
		return nil, fmt.Errorf("invalid filter cache TTL: %w", err)
	}
	cleanupFreq, err := f.cfg.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}
	return cache.NewTTLCache(f.logger, f.clock, ttl, cleanupFreq), nil
}

// CreateRobotParamCache builds the short-lived robot parameter cache.
func (f *SearchFactory) CreateRobotParamCache() (*cache.TTLCache, error) {
	ttl, err := f.cfg.GetDuration("cache.robot_params_ttl")
	if err != nil {
		return nil, fmt.Errorf("invalid robot param cache TTL: %w", err)
	}
	cleanupFreq, err := f.cfg.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}
	return cache.NewTTLCache(f.logger, f.clock, ttl, cleanupFreq), nil
}

// CreateSearchEngine builds the filter dispatcher with its SQL and LDAP
// backends.
func (f *SearchFactory) CreateSearchEngine(filterCache *cache.TTLCache) (*search.Engine, error) {
	var sqlBackend *search.SQLBackend
	driver := f.cfg.GetString("database.driver")
	switch driver {
	case "sqlite3":
		db, err := search.OpenDatabase(driver, f.cfg.GetString("database.sqlite_path"))
		if err != nil {
			return nil, err
		}
		sqlBackend = search.NewSQLBackend(db, f.logger)
	case "mysql":
		db, err := search.OpenDatabase(driver, f.cfg.GetString("database.mysql_dsn"))
		if err != nil {
			return nil, err
		}
		sqlBackend = search.NewSQLBackend(db, f.logger)
	case "", "none":
		// .sql filters fail until a database is configured.
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	timeout, err := f.cfg.GetDuration("ldap.timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid ldap timeout: %w", err)
	}
	ldapBackend := search.NewLDAPBackend(f.logger, timeout)

	return search.NewEngine(f.cfg, f.logger, sqlBackend, ldapBackend, filterCache), nil
}
