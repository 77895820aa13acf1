package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
)

// functionAliases maps legacy function names onto their current ones before
// any lookup.
var functionAliases = map[string]string{
	"shared_doc.d_read":  "d_read",
	"shared_doc.d_edit":  "d_edit",
	"archive.access":     "archive_mail_access",
	"web_archive.access": "archive_web_access",
}

// CanonicalFunction resolves a function name through the compatibility alias
// table.
func CanonicalFunction(function string) string {
	if alias, ok := functionAliases[function]; ok {
		return alias
	}
	return function
}

// LoadOptions tune a single Load call.
type LoadOptions struct {
	// Name forces the scenario name instead of resolving it from list or
	// robot configuration.
	Name string

	// DontReload returns any cached definition without checking the file
	// modification time.
	DontReload bool
}

// Store loads scenario files and memoizes parsed definitions keyed by file
// path, with modification-time invalidation. It guarantees at most one parse
// per file change, and one parse total under concurrent first access.
type Store struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  core.Clock

	mu   sync.Mutex
	defs map[string]*core.ScenarioDefinition
	// locks serializes loads per file path so concurrent misses on the same
	// scenario parse once.
	locks map[string]*sync.Mutex
}

// NewStore creates a scenario store.
func NewStore(cfg *config.Config, logger *zap.Logger, clock core.Clock) *Store {
	return &Store{
		cfg:    cfg,
		logger: logger,
		clock:  clock,
		defs:   map[string]*core.ScenarioDefinition{},
		locks:  map[string]*sync.Mutex{},
	}
}

// Load resolves and returns the scenario for (list-or-robot, function).
// list may be nil for domain-scoped functions. When no file resolves and the
// function is not "include", Load falls back to a cached synthetic
// always-reject scenario; "include" misses return core.ErrNotFound.
func (s *Store) Load(list core.List, robot, function string, opts LoadOptions) (*core.ScenarioDefinition, error) {
	function = CanonicalFunction(function)

	name, err := s.resolveName(list, robot, function, opts)
	if err != nil {
		return nil, err
	}

	path := s.findFile(robot, function, name)
	if path == "" {
		if function == "include" {
			return nil, core.ErrNotFound
		}
		return s.errorScenario(function, name), nil
	}

	pathLock := s.lockPath(path)
	pathLock.Lock()
	defer pathLock.Unlock()

	s.mu.Lock()
	cached := s.defs[path]
	s.mu.Unlock()

	if cached != nil {
		if opts.DontReload || s.cfg.GetBool("scenario.dont_reload") {
			return cached, nil
		}
		if info, err := os.Stat(path); err == nil && info.ModTime().Unix() <= cached.Date {
			return cached, nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	def, err := Parse(function, name, string(raw))
	if err != nil {
		return nil, err
	}
	def.FilePath = path
	def.Date = s.clock.Now().Unix()

	s.mu.Lock()
	s.defs[path] = def
	s.mu.Unlock()

	s.logger.Debug("Loaded scenario",
		zap.String("function", function),
		zap.String("name", name),
		zap.String("path", path),
		zap.Int("rules", len(def.Rules)))
	return def, nil
}

// resolveName determines the scenario name: explicit option, then the list
// admin parameter for list-scoped functions, then the robot configuration
// key. include and topics_visibility require an explicit name; a missing one
// is a caller defect.
func (s *Store) resolveName(list core.List, robot, function string, opts LoadOptions) (string, error) {
	if opts.Name != "" {
		return opts.Name, nil
	}
	if function == "include" || function == "topics_visibility" {
		return "", core.NewInputError("function %q requires an explicit scenario name", function)
	}
	if list != nil {
		if name, ok := listScenarioName(list, function); ok {
			return name, nil
		}
	}
	if val, ok := s.cfg.Get(robot, function); ok {
		return val, nil
	}
	return "", core.NewInputError("no scenario name configured for function %q", function)
}

// listScenarioName reads a scenario name from a list admin parameter. The
// function may be nested ("section.key"), and the parameter value is either
// a bare name or a record with a "name" field.
func listScenarioName(list core.List, function string) (string, bool) {
	var val any
	var ok bool
	if section, key, found := strings.Cut(function, "."); found {
		val, ok = list.AdminParam(section)
		if ok {
			if rec, isMap := val.(map[string]any); isMap {
				val, ok = rec[key], rec[key] != nil
			} else {
				ok = false
			}
		}
	} else {
		val, ok = list.AdminParam(function)
	}
	if !ok || val == nil {
		return "", false
	}
	switch v := val.(type) {
	case string:
		return v, v != ""
	case map[string]any:
		if name, isStr := v["name"].(string); isStr && name != "" {
			return name, true
		}
	}
	return "", false
}

// findFile walks the configured search paths, robot-specific directories
// first, for scenari/<function>.<name>.
func (s *Store) findFile(robot, function, name string) string {
	file := function + "." + name
	paths := s.cfg.GetStringSlice("scenario.paths")
	if robot != "" {
		for _, base := range paths {
			candidate := filepath.Join(base, robot, "scenari", file)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	for _, base := range paths {
		candidate := filepath.Join(base, "scenari", file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// errorScenario returns the synthetic always-reject fallback for a scenario
// that cannot be resolved, cached so repeated misses do not re-synthesize.
// Its Date of 0 keeps it older than any real file found later.
func (s *Store) errorScenario(function, name string) *core.ScenarioDefinition {
	key := "ERROR/" + function + "." + name

	s.mu.Lock()
	defer s.mu.Unlock()
	if def, ok := s.defs[key]; ok {
		return def
	}

	s.logger.Error("Scenario not found, falling back to always-reject",
		zap.String("function", function),
		zap.String("name", name))

	src := "title.gettext corrupted or missing scenario\n\ntrue() smtp -> reject\n"
	def, err := Parse(function, name, src)
	if err != nil {
		// The synthetic source is a constant; it always parses.
		panic(err)
	}
	def.FilePath = key
	def.Date = 0
	s.defs[key] = def
	return def
}

func (s *Store) lockPath(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}
