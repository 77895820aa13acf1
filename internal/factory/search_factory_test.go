package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
)

func newFactory(t *testing.T, set map[string]any) *SearchFactory {
	t.Helper()
	v := config.NewEmptyViper()
	for key, val := range set {
		v.Set(key, val)
	}
	return NewSearchFactory(config.NewFromViper(v), zap.NewNop(), core.SystemClock{})
}

func TestCreateSearchEngine(t *testing.T) {
	f := newFactory(t, map[string]any{
		"database.driver":      "sqlite3",
		"database.sqlite_path": ":memory:",
	})

	filterCache, err := f.CreateFilterCache()
	require.NoError(t, err)
	t.Cleanup(filterCache.Stop)

	eng, err := f.CreateSearchEngine(filterCache)
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestCreateSearchEngineWithoutDatabase(t *testing.T) {
	f := newFactory(t, map[string]any{"database.driver": "none"})

	filterCache, err := f.CreateFilterCache()
	require.NoError(t, err)
	t.Cleanup(filterCache.Stop)

	eng, err := f.CreateSearchEngine(filterCache)
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestCreateSearchEngineRejectsUnknownDriver(t *testing.T) {
	f := newFactory(t, map[string]any{"database.driver": "oracle"})

	filterCache, err := f.CreateFilterCache()
	require.NoError(t, err)
	t.Cleanup(filterCache.Stop)

	_, err = f.CreateSearchEngine(filterCache)
	assert.Error(t, err)
}

func TestCacheTTLsMustParse(t *testing.T) {
	f := newFactory(t, map[string]any{"cache.robot_params_ttl": "soon"})

	_, err := f.CreateRobotParamCache()
	assert.Error(t, err)
}
