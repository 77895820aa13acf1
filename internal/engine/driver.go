package engine

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/cache"
	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/custom"
	"github.com/mailster/scenario/internal/scenario"
	"github.com/mailster/scenario/internal/search"
)

// Engine is the decision driver: it assembles the effective rule list for a
// function and evaluates it in file order against one authentication method.
// First match wins; absence of an explicit allow is always a deny.
type Engine struct {
	store  *scenario.Store
	search *search.Engine
	custom *custom.Registry
	conf   core.RobotConfig
	users  core.UserStore
	lists  core.ListResolver
	logger *zap.Logger
	clock  core.Clock

	// robotParams amortizes per-robot configuration snapshots that would
	// otherwise be recomputed once per rule (10s TTL).
	robotParams *cache.TTLCache

	blacklistFile string
}

// New creates a decision engine.
func New(
	store *scenario.Store,
	searchEngine *search.Engine,
	customReg *custom.Registry,
	conf core.RobotConfig,
	users core.UserStore,
	lists core.ListResolver,
	logger *zap.Logger,
	clock core.Clock,
	robotParams *cache.TTLCache,
) *Engine {
	blacklistFile := "blacklist.txt"
	if v, ok := conf.Get("", "engine.blacklist_file"); ok {
		blacklistFile = v
	}
	return &Engine{
		store:         store,
		search:        searchEngine,
		custom:        customReg,
		conf:          conf,
		users:         users,
		lists:         lists,
		logger:        logger,
		clock:         clock,
		robotParams:   robotParams,
		blacklistFile: blacklistFile,
	}
}

// DecideOptions tune a single Decide call.
type DecideOptions struct {
	// Name forces the scenario name instead of resolving it from list or
	// robot configuration.
	Name string

	// DontReload skips the scenario file mtime check.
	DontReload bool

	// Debug degrades condition evaluation errors into a
	// reject/error-performing-condition decision instead of failing.
	Debug bool
}

// Decide evaluates the scenario for (target, function) under the given
// authentication method and returns the first matching action. list may be
// nil for domain-scoped functions.
func (e *Engine) Decide(ctx context.Context, list core.List, robot, function, authMethod string, ectx *core.EvaluationContext, opts DecideOptions) (*core.Decision, error) {
	function = scenario.CanonicalFunction(function)

	// Closed or pending lists never evaluate rules for send/visibility.
	if list != nil && list.Status() != "open" && (function == "send" || function == "visibility") {
		e.logger.Info("List not open, rejecting without evaluation",
			zap.String("list", list.Name()),
			zap.String("function", function),
			zap.String("status", list.Status()))
		return &core.Decision{
			Action: core.ActionReject,
			Reason: "list-no-open",
		}, nil
	}

	method, ok := core.CanonicalAuthMethod(authMethod)
	if !ok {
		return nil, core.NewInputError("unknown auth method %q", authMethod)
	}

	if ectx == nil {
		ectx = core.NewEvaluationContext()
	}
	e.prepareContext(ectx, list, robot)

	def, err := e.store.Load(list, robot, function, scenario.LoadOptions{
		Name:       opts.Name,
		DontReload: opts.DontReload,
	})
	if err != nil {
		return nil, err
	}

	rules, err := e.effectiveRules(list, robot, function, def)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if rule.AuthMethod != method {
			continue
		}

		result, err := e.Verify(ctx, ectx, robot, rule.Condition)
		if err != nil {
			e.logger.Error("Error evaluating rule condition",
				zap.String("function", function),
				zap.String("condition", rule.Condition),
				zap.Int("line", rule.LineNum),
				zap.Error(err))
			if opts.Debug {
				return &core.Decision{
					Action:     core.ActionReject,
					Reason:     "error-performing-condition",
					AuthMethod: rule.AuthMethod,
					Condition:  rule.Condition,
				}, nil
			}
			return nil, err
		}
		if result < 0 {
			continue
		}

		decision, err := parseAction(rule.Action)
		if err != nil {
			return nil, err
		}
		decision.AuthMethod = rule.AuthMethod
		decision.Condition = rule.Condition

		e.logger.Debug("Rule matched",
			zap.String("function", function),
			zap.String("scenario", def.Name),
			zap.String("condition", rule.Condition),
			zap.String("action", decision.Action),
			zap.Int("line", rule.LineNum))
		return decision, nil
	}

	// No explicit allow is always a deny.
	return &core.Decision{
		Action:     core.ActionReject,
		Reason:     "no-rule-match",
		AuthMethod: "default",
	}, nil
}

// prepareContext defaults the required context fields and derives the
// list/robot-scoped ones.
func (e *Engine) prepareContext(ectx *core.EvaluationContext, list core.List, robot string) {
	ectx.ApplyDefaults(e.clock)
	ectx.Vars["robot_domain"] = robot
	if list != nil {
		if ectx.List == nil {
			ectx.List = list
		}
		ectx.Vars["listname"] = list.Name()
		ectx.Vars["domain"] = list.Domain()
		if ectx.CustomVars == nil {
			ectx.CustomVars = listCustomVars(list)
		}
	}
}

func listCustomVars(list core.List) map[string]string {
	raw, ok := list.AdminParam("custom_vars")
	if !ok || raw == nil {
		return nil
	}
	switch vars := raw.(type) {
	case map[string]string:
		return vars
	case map[string]any:
		out := make(map[string]string, len(vars))
		for k, v := range vars {
			if s, isStr := v.(string); isStr {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

var includeDirectiveRe = regexp.MustCompile(`^include\((.+)\)$`)

// effectiveRules assembles the rule sequence for one decision: deny-list
// rules first, then the include.<function>.header scenario, then the
// scenario's own rules with include directives spliced in place. The splice
// scan is a single pass: includes inside an included file are not expanded.
func (e *Engine) effectiveRules(list core.List, robot, function string, def *core.ScenarioDefinition) ([]core.Rule, error) {
	var rules []core.Rule

	blacklisted, err := e.functionBlacklisted(robot, function)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		for _, method := range core.AuthMethods {
			rules = append(rules, core.Rule{
				Condition:  "search('" + e.blacklistFile + "',[sender])",
				AuthMethod: method,
				Action:     "reject,quiet",
			})
		}
	}

	if header, err := e.store.Load(list, robot, "include", scenario.LoadOptions{Name: function + ".header"}); err == nil {
		rules = append(rules, header.Rules...)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	for _, rule := range def.Rules {
		if !rule.IsInclude() {
			rules = append(rules, rule)
			continue
		}
		m := includeDirectiveRe.FindStringSubmatch(rule.Condition)
		if m == nil {
			return nil, core.NewInputError("malformed include directive %q", rule.Condition)
		}
		included, err := e.store.Load(list, robot, "include", scenario.LoadOptions{Name: m[1]})
		if err != nil {
			return nil, &core.EvalError{
				Condition: rule.Condition,
				Msg:       "cannot load included scenario " + m[1],
				Err:       err,
			}
		}
		rules = append(rules, included.Rules...)
	}

	return rules, nil
}

// robotSnapshot holds the per-robot configuration the engine touches on
// every rule.
type robotSnapshot struct {
	Listmasters []string
	Blacklist   map[string]bool
}

func (e *Engine) robotSnapshot(robot string) (*robotSnapshot, error) {
	v, err := e.robotParams.GetOrCompute("robot/"+robot, func() (any, error) {
		snap := &robotSnapshot{
			Listmasters: e.conf.Listmasters(robot),
			Blacklist:   map[string]bool{},
		}
		if raw, ok := e.conf.Get(robot, "blacklist"); ok {
			for _, fn := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
				snap.Blacklist[fn] = true
			}
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotSnapshot), nil
}

func (e *Engine) functionBlacklisted(robot, function string) (bool, error) {
	snap, err := e.robotSnapshot(robot)
	if err != nil {
		return false, err
	}
	return snap.Blacklist[function], nil
}
