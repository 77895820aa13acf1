package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
)

// ErrMissingData is returned when a filter placeholder references context
// data that is legitimately absent. Callers treat the owning condition as
// false rather than failing.
var ErrMissingData = errors.New("missing data for filter placeholder")

// VarResolver resolves a [name] or [name->field] placeholder to its value.
// miss=true signals legitimately absent data.
type VarResolver func(name, field string) (value string, miss bool, err error)

// Engine executes named membership filters against LDAP, SQL or flat-text
// backends. Boolean results are memoized per (filter identity, fully
// substituted filter string) to avoid redundant external I/O.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
	sql    *SQLBackend
	ldap   *LDAPBackend
	cache  *cache.TTLCache

	paths         []string
	blacklistFile string
}

// NewEngine creates a search engine. sqlBackend and ldapBackend may be nil
// when the corresponding filter types are unused; hitting such a filter then
// fails the rule.
func NewEngine(cfg *config.Config, logger *zap.Logger, sqlBackend *SQLBackend, ldapBackend *LDAPBackend, resultCache *cache.TTLCache) *Engine {
	return &Engine{
		cfg:           cfg,
		logger:        logger,
		sql:           sqlBackend,
		ldap:          ldapBackend,
		cache:         resultCache,
		paths:         cfg.GetStringSlice("scenario.paths"),
		blacklistFile: cfg.GetString("engine.blacklist_file"),
	}
}

// Search runs the named filter. Dispatch is by file extension; anything but
// .sql/.ldap/.txt is a fatal unknown-filter-type error.
func (e *Engine) Search(ctx context.Context, robot, filterName, sender string, resolve VarResolver) (bool, error) {
	switch {
	case strings.HasSuffix(filterName, ".sql"):
		return e.searchSQL(ctx, robot, filterName, resolve)
	case strings.HasSuffix(filterName, ".ldap"):
		return e.searchLDAP(ctx, robot, filterName, resolve)
	case strings.HasSuffix(filterName, ".txt"):
		return e.searchTxt(robot, filterName, sender)
	default:
		return false, &core.EvalError{Msg: "unknown filter type " + filterName}
	}
}

// cachedBool memoizes a boolean lookup under the filter result TTL with a
// single in-flight computation per key.
func (e *Engine) cachedBool(key string, fn func() (bool, error)) (bool, error) {
	v, err := e.cache.GetOrCompute(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// findFilterFiles returns every file named name under the search_filters
// directories, robot-specific paths first. All matches are returned; the
// flat-text backend scans them in order.
func (e *Engine) findFilterFiles(robot, name string) []string {
	var found []string
	if robot != "" {
		for _, base := range e.paths {
			candidate := filepath.Join(base, robot, "search_filters", name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				found = append(found, candidate)
			}
		}
	}
	for _, base := range e.paths {
		candidate := filepath.Join(base, "search_filters", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}

// findFilterFile returns the highest-precedence filter definition file.
func (e *Engine) findFilterFile(robot, name string) (string, error) {
	files := e.findFilterFiles(robot, name)
	if len(files) == 0 {
		return "", fmt.Errorf("filter file %s not found", name)
	}
	return files[0], nil
}
