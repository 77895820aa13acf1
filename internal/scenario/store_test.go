package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestStore(t *testing.T) (*Store, string, *fakeClock) {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "scenari"), 0o755))

	v := config.NewEmptyViper()
	v.Set("scenario.paths", []string{base})
	cfg := config.NewFromViper(v)

	// Keep the clock ahead of real file mtimes so freshly written files
	// always look up to date against the recorded load time.
	clock := &fakeClock{now: time.Now().Add(time.Minute)}
	return NewStore(cfg, zap.NewNop(), clock), base, clock
}

func writeScenario(t *testing.T, base, file, src string) string {
	t.Helper()
	path := filepath.Join(base, "scenari", file)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadParsesAndCaches(t *testing.T) {
	store, base, clock := newTestStore(t)
	path := writeScenario(t, base, "send.private", "true() smtp -> do_it\n")

	def, err := store.Load(nil, "", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)
	assert.Equal(t, path, def.FilePath)
	assert.Equal(t, clock.now.Unix(), def.Date)
	require.Len(t, def.Rules, 1)

	// Unchanged mtime returns the identical definition.
	again, err := store.Load(nil, "", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)
	assert.Same(t, def, again)
}

func TestLoadReparsesOnModification(t *testing.T) {
	store, base, clock := newTestStore(t)
	path := writeScenario(t, base, "send.private", "true() smtp -> do_it\n")

	def, err := store.Load(nil, "", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)

	// Touch the file past the recorded load time.
	writeScenario(t, base, "send.private", "true() smtp -> reject\n")
	future := clock.now.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	clock.now = future.Add(time.Second)

	fresh, err := store.Load(nil, "", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)
	assert.NotSame(t, def, fresh)
	assert.Equal(t, "reject", fresh.Rules[0].Action)
}

func TestLoadDontReloadSkipsStatCheck(t *testing.T) {
	store, base, clock := newTestStore(t)
	path := writeScenario(t, base, "send.private", "true() smtp -> do_it\n")

	def, err := store.Load(nil, "", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)

	writeScenario(t, base, "send.private", "true() smtp -> reject\n")
	future := clock.now.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	cached, err := store.Load(nil, "", "send", LoadOptions{Name: "private", DontReload: true})
	require.NoError(t, err)
	assert.Same(t, def, cached)
}

func TestLoadMissingFallsBackToReject(t *testing.T) {
	store, _, _ := newTestStore(t)

	def, err := store.Load(nil, "", "send", LoadOptions{Name: "nosuch"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), def.Date, "synthetic scenario is older than any real file")
	require.Len(t, def.Rules, 1)
	assert.Equal(t, "true()", def.Rules[0].Condition)
	assert.Equal(t, "reject", def.Rules[0].Action)

	// Repeated misses reuse the synthetic definition.
	again, err := store.Load(nil, "", "send", LoadOptions{Name: "nosuch"})
	require.NoError(t, err)
	assert.Same(t, def, again)
}

func TestLoadIncludeMissFailsUncached(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Load(nil, "", "include", LoadOptions{Name: "nosuch"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLoadIncludeWithoutNameIsProgrammingError(t *testing.T) {
	store, _, _ := newTestStore(t)

	for _, function := range []string{"include", "topics_visibility"} {
		_, err := store.Load(nil, "", function, LoadOptions{})
		var ierr *core.InputError
		assert.ErrorAs(t, err, &ierr, function)
	}
}

func TestLoadRobotSpecificOverridesDefault(t *testing.T) {
	store, base, _ := newTestStore(t)
	writeScenario(t, base, "send.private", "true() smtp -> reject\n")

	robotDir := filepath.Join(base, "lists.example.org", "scenari")
	require.NoError(t, os.MkdirAll(robotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(robotDir, "send.private"),
		[]byte("true() smtp -> do_it\n"), 0o644))

	def, err := store.Load(nil, "lists.example.org", "send", LoadOptions{Name: "private"})
	require.NoError(t, err)
	assert.Equal(t, "do_it", def.Rules[0].Action)
}

func TestLoadNameFromListParam(t *testing.T) {
	store, base, _ := newTestStore(t)
	writeScenario(t, base, "send.owner", "true() smtp -> editor\n")

	list := &paramList{params: map[string]any{"send": map[string]any{"name": "owner"}}}
	def, err := store.Load(list, "", "send", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "editor", def.Rules[0].Action)
}

func TestCanonicalFunction(t *testing.T) {
	assert.Equal(t, "d_read", CanonicalFunction("shared_doc.d_read"))
	assert.Equal(t, "archive_mail_access", CanonicalFunction("archive.access"))
	assert.Equal(t, "send", CanonicalFunction("send"))
}

// paramList is a minimal core.List carrying only admin parameters.
type paramList struct {
	params map[string]any
}

func (l *paramList) Name() string    { return "test" }
func (l *paramList) Domain() string  { return "example.org" }
func (l *paramList) Address() string { return "test@example.org" }
func (l *paramList) Status() string  { return "open" }
func (l *paramList) Total() int      { return 0 }

func (l *paramList) AdminParam(key string) (any, bool) {
	v, ok := l.params[key]
	return v, ok
}

func (l *paramList) IsAdmin(role, email string) (bool, error) { return false, nil }
func (l *paramList) IsMember(email string) (bool, error)      { return false, nil }
