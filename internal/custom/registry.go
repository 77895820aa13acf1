package custom

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/core"
)

// Condition is the single-entry contract a custom predicate implements.
// Returning an error fails the rule being evaluated.
type Condition interface {
	Verify(ctx context.Context, args []string) (bool, error)
}

// ConditionFunc adapts a function to the Condition interface.
type ConditionFunc func(ctx context.Context, args []string) (bool, error)

func (f ConditionFunc) Verify(ctx context.Context, args []string) (bool, error) {
	return f(ctx, args)
}

// Registry resolves customcondition::<name> predicates: first against
// conditions registered in-process, then as executables under a
// custom_conditions directory on the search paths. Results share the
// search-filter cache discipline (same TTL, keyed by name plus joined
// arguments).
type Registry struct {
	logger *zap.Logger
	cache  *cache.TTLCache
	paths  []string

	conditions map[string]Condition
}

// NewRegistry creates a custom-condition registry. paths are the bases
// searched for custom_conditions/<name> executables.
func NewRegistry(logger *zap.Logger, resultCache *cache.TTLCache, paths []string) *Registry {
	return &Registry{
		logger:     logger,
		cache:      resultCache,
		paths:      paths,
		conditions: map[string]Condition{},
	}
}

// Register installs an in-process condition under name. Registration happens
// at wiring time, before any evaluation.
func (r *Registry) Register(name string, cond Condition) {
	r.conditions[name] = cond
}

// Verify runs the named custom condition. Resolution failure or an
// uninterpretable result is fatal for the rule.
func (r *Registry) Verify(ctx context.Context, name string, args []string) (bool, error) {
	key := "custom/" + name + "\x00" + strings.Join(args, "\x00")
	v, err := r.cache.GetOrCompute(key, func() (any, error) {
		if cond, ok := r.conditions[name]; ok {
			return cond.Verify(ctx, args)
		}
		return r.execCondition(ctx, name, args)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// execCondition resolves name to an executable under custom_conditions/ and
// interprets its first output line: "1" is true, "0" is false, anything else
// is an error.
func (r *Registry) execCondition(ctx context.Context, name string, args []string) (bool, error) {
	path, err := r.findModule(name)
	if err != nil {
		return false, err
	}

	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return false, &core.EvalError{Msg: "custom condition " + name + " failed", Err: err}
	}

	result := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(result, '\n'); idx >= 0 {
		result = result[:idx]
	}
	switch result {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, &core.EvalError{Msg: "custom condition " + name + " returned non-numeric result " + result}
	}
}

func (r *Registry) findModule(name string) (string, error) {
	// Predicate names come from scenario files; keep them from escaping the
	// module directory.
	if strings.ContainsAny(name, "/\\.") {
		return "", &core.EvalError{Msg: "invalid custom condition name " + name}
	}
	for _, base := range r.paths {
		candidate := filepath.Join(base, "custom_conditions", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", &core.EvalError{Msg: "custom condition module " + name + " not found"}
}
