package custom

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/core"
)

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "custom_conditions"), 0o755))

	resultCache := cache.NewTTLCache(zap.NewNop(), core.SystemClock{}, time.Hour, time.Hour)
	t.Cleanup(resultCache.Stop)

	return NewRegistry(zap.NewNop(), resultCache, []string{base}), base
}

func writeModule(t *testing.T, base, name, script string) {
	t.Helper()
	path := filepath.Join(base, "custom_conditions", name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func TestRegisteredConditionWins(t *testing.T) {
	reg, _ := newRegistry(t)
	var seen []string
	reg.Register("from_trusted_domain", ConditionFunc(func(ctx context.Context, args []string) (bool, error) {
		seen = args
		return args[0] == "trusted.example", nil
	}))

	ok, err := reg.Verify(context.Background(), "from_trusted_domain", []string{"trusted.example"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"trusted.example"}, seen)

	ok, err = reg.Verify(context.Background(), "from_trusted_domain", []string{"other.example"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyResultsAreCached(t *testing.T) {
	reg, _ := newRegistry(t)
	calls := 0
	reg.Register("counted", ConditionFunc(func(ctx context.Context, args []string) (bool, error) {
		calls++
		return true, nil
	}))

	for i := 0; i < 3; i++ {
		ok, err := reg.Verify(context.Background(), "counted", []string{"x"})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, calls)

	// Different arguments are a different cache entry.
	_, err := reg.Verify(context.Background(), "counted", []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecModule(t *testing.T) {
	reg, base := newRegistry(t)
	writeModule(t, base, "always_yes", "#!/bin/sh\necho 1\n")
	writeModule(t, base, "always_no", "#!/bin/sh\necho 0\n")
	writeModule(t, base, "garbage", "#!/bin/sh\necho maybe\n")

	ok, err := reg.Verify(context.Background(), "always_yes", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Verify(context.Background(), "always_no", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = reg.Verify(context.Background(), "garbage", nil)
	var evalErr *core.EvalError
	assert.True(t, errors.As(err, &evalErr))
}

func TestMissingModuleIsFatal(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Verify(context.Background(), "nonexistent", nil)
	var evalErr *core.EvalError
	require.True(t, errors.As(err, &evalErr))
}

func TestModuleNameCannotEscapeDirectory(t *testing.T) {
	reg, _ := newRegistry(t)

	for _, name := range []string{"../evil", "sub/evil", "evil.sh"} {
		_, err := reg.Verify(context.Background(), name, nil)
		assert.Error(t, err, name)
	}
}
