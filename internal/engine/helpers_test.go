package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/custom"
	"github.com/mailster/scenario/internal/scenario"
	"github.com/mailster/scenario/internal/search"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type mockList struct {
	name    string
	domain  string
	status  string
	total   int
	params  map[string]any
	admins  map[string][]string
	members []string
}

func (l *mockList) Name() string    { return l.name }
func (l *mockList) Domain() string  { return l.domain }
func (l *mockList) Address() string { return l.name + "@" + l.domain }
func (l *mockList) Status() string  { return l.status }
func (l *mockList) Total() int      { return l.total }

func (l *mockList) AdminParam(key string) (any, bool) {
	v, ok := l.params[key]
	return v, ok
}

func (l *mockList) IsAdmin(role, email string) (bool, error) {
	for _, a := range l.admins[role] {
		if a == email {
			return true, nil
		}
	}
	return false, nil
}

func (l *mockList) IsMember(email string) (bool, error) {
	for _, m := range l.members {
		if m == email {
			return true, nil
		}
	}
	return false, nil
}

type mockUsers struct {
	users map[string]*core.User
	subs  map[string]map[string]string
}

func (u *mockUsers) GlobalUser(email string) (*core.User, error) {
	return u.users[email], nil
}

func (u *mockUsers) Subscriber(list core.List, email string) (map[string]string, error) {
	return u.subs[email], nil
}

type mockResolver struct {
	lists map[string]core.List
}

func (r *mockResolver) ResolveList(name, robot string) (core.List, error) {
	if l, ok := r.lists[name+"@"+robot]; ok {
		return l, nil
	}
	return nil, core.ErrNotFound
}

// testEnv bundles a fully wired engine over a temp directory tree.
type testEnv struct {
	eng   *Engine
	base  string
	clock *fakeClock
	v     *viper.Viper
	users *mockUsers
	lists *mockResolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "scenari"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "search_filters"), 0o755))

	v := config.NewEmptyViper()
	v.Set("scenario.paths", []string{base})
	cfg := config.NewFromViper(v)

	clock := &fakeClock{now: time.Now()}
	logger := zap.NewNop()

	filterCache := cache.NewTTLCache(logger, clock, time.Hour, time.Hour)
	robotParams := cache.NewTTLCache(logger, clock, 10*time.Second, time.Hour)
	t.Cleanup(filterCache.Stop)
	t.Cleanup(robotParams.Stop)

	store := scenario.NewStore(cfg, logger, clock)
	searchEngine := search.NewEngine(cfg, logger, nil, nil, filterCache)
	registry := custom.NewRegistry(logger, filterCache, []string{base})

	users := &mockUsers{users: map[string]*core.User{}, subs: map[string]map[string]string{}}
	lists := &mockResolver{lists: map[string]core.List{}}

	eng := New(store, searchEngine, registry, cfg, users, lists, logger, clock, robotParams)
	return &testEnv{eng: eng, base: base, clock: clock, v: v, users: users, lists: lists}
}

func (env *testEnv) writeScenario(t *testing.T, file, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(env.base, "scenari", file), []byte(src), 0o644))
}

func (env *testEnv) writeFilter(t *testing.T, file, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(env.base, "search_filters", file), []byte(src), 0o644))
}

func senderContext(sender string) *core.EvaluationContext {
	ectx := core.NewEvaluationContext()
	ectx.Vars["sender"] = sender
	return ectx
}
