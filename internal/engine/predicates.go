package engine

import (
	"context"
	"errors"
	"net/mail"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/search"
)

// errMissingData marks a predicate that could not apply because referenced
// data is absent; the condition resolves to false instead of erroring.
var errMissingData = errors.New("missing data")

// Verify evaluates one raw condition against the context. It returns +1
// when the condition holds and -1 when it does not (including when referenced
// data is absent); anything else is a fatal evaluation error.
func (e *Engine) Verify(ctx context.Context, ectx *core.EvaluationContext, robot, raw string) (int, error) {
	cond, err := parseCondition(raw)
	if err != nil {
		return 0, err
	}

	// Substitute all arguments up front; absence short-circuits the whole
	// condition to false, negation included.
	args := make([][]string, len(cond.args))
	for i, tok := range cond.args {
		vals, miss, err := e.resolveToken(ectx, robot, tok)
		if err != nil {
			return 0, wrapEval(raw, err)
		}
		if miss {
			return -1, nil
		}
		args[i] = vals
	}

	ok, err := e.evalPredicate(ctx, ectx, robot, cond, args)
	if errors.Is(err, errMissingData) || errors.Is(err, search.ErrMissingData) {
		return -1, nil
	}
	if err != nil {
		return 0, wrapEval(raw, err)
	}
	if ok {
		return cond.negation, nil
	}
	return -cond.negation, nil
}

func wrapEval(raw string, err error) error {
	if ee, ok := err.(*core.EvalError); ok {
		if ee.Condition == "" {
			ee.Condition = raw
		}
		return ee
	}
	return &core.EvalError{Condition: raw, Msg: "evaluation failed", Err: err}
}

func (e *Engine) evalPredicate(ctx context.Context, ectx *core.EvaluationContext, robot string, cond *condition, args [][]string) (bool, error) {
	if strings.HasPrefix(cond.predicate, customPrefix) {
		name := cond.predicate[len(customPrefix):]
		return e.custom.Verify(ctx, name, flatten(args))
	}

	switch cond.predicate {
	case "true", "all", "any":
		return true, nil

	case "is_listmaster":
		return e.isListmaster(robot, args[0])

	case "verify_netmask":
		return e.verifyNetmask(ectx, first(args[0]))

	case "older":
		return e.older(first(args[0]), first(args[1]))

	case "newer":
		ok, err := e.older(first(args[0]), first(args[1]))
		return !ok, err

	case "is_owner", "is_editor", "is_subscriber":
		return e.checkMembership(robot, cond.predicate, first(args[0]), args[1])

	case "match":
		if cond.args[1].kind != tokRegex {
			return false, &core.EvalError{Msg: "match() second argument must be a /regex/"}
		}
		return e.matchRegexp(ectx, robot, args[0], cond.args[1].text)

	case "equal":
		return anyElement(args[0], func(v string) bool {
			return strings.EqualFold(v, first(args[1]))
		}), nil

	case "message":
		// Field equality against the message record.
		if ectx.Message == nil {
			return false, errMissingData
		}
		val, ok := ectx.Message.Field(first(args[0]))
		if !ok {
			return false, errMissingData
		}
		return strings.EqualFold(val, first(args[1])), nil

	case "less_than":
		return anyElement(args[0], func(v string) bool {
			return smartLess(v, first(args[1]))
		}), nil

	case "search":
		return e.searchFilter(ctx, ectx, robot, first(args[0]))

	default:
		// parseCondition already rejected unknown predicates.
		return false, &core.EvalError{Msg: "unknown predicate " + cond.predicate}
	}
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func flatten(args [][]string) []string {
	var out []string
	for _, vals := range args {
		out = append(out, vals...)
	}
	return out
}

func anyElement(vals []string, pred func(string) bool) bool {
	for _, v := range vals {
		if pred(v) {
			return true
		}
	}
	return false
}

// parseAddresses extracts bare lowercased addresses from a value list that
// may contain full RFC 5322 mailboxes ("Name <a@b>").
func parseAddresses(vals []string) []string {
	var out []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if addr, err := mail.ParseAddress(v); err == nil {
			out = append(out, strings.ToLower(addr.Address))
			continue
		}
		out = append(out, strings.ToLower(v))
	}
	return out
}

func (e *Engine) isListmaster(robot string, vals []string) (bool, error) {
	snap, err := e.robotSnapshot(robot)
	if err != nil {
		return false, err
	}
	for _, addr := range parseAddresses(vals) {
		if addr == "nobody" {
			continue
		}
		for _, lm := range snap.Listmasters {
			if strings.EqualFold(addr, lm) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Engine) verifyNetmask(ectx *core.EvaluationContext, mask string) (bool, error) {
	remote, _ := ectx.Get("remote_addr")
	remoteStr, _ := remote.(string)
	if remoteStr == "" {
		// No remote address: the rule is inapplicable, not broken.
		return false, nil
	}
	addr, err := netip.ParseAddr(remoteStr)
	if err != nil {
		return false, nil
	}

	if mask == "default" || mask == "any" {
		return true, nil
	}

	var prefix netip.Prefix
	if strings.ContainsRune(mask, '/') {
		prefix, err = netip.ParsePrefix(mask)
	} else {
		var single netip.Addr
		single, err = netip.ParseAddr(mask)
		if err == nil {
			prefix = netip.PrefixFrom(single, single.BitLen())
		}
	}
	if err != nil {
		return false, &core.EvalError{Msg: "malformed netmask " + mask, Err: err}
	}
	return prefix.Contains(addr.Unmap()), nil
}

func (e *Engine) older(a, b string) (bool, error) {
	t1, err := e.parseTimeValue(a)
	if err != nil {
		return false, &core.EvalError{Msg: "older/newer operand", Err: err}
	}
	t2, err := e.parseTimeValue(b)
	if err != nil {
		return false, &core.EvalError{Msg: "older/newer operand", Err: err}
	}
	return t1 <= t2, nil
}

// checkMembership resolves a possibly cross-robot list reference and checks
// any of the candidate addresses for the requested role. Listmasters count
// as owners.
func (e *Engine) checkMembership(robot, predicate, listRef string, addrVals []string) (bool, error) {
	name := listRef
	targetRobot := robot
	if n, r, found := strings.Cut(listRef, "@"); found {
		name, targetRobot = n, r
	}
	list, err := e.lists.ResolveList(name, targetRobot)
	if err != nil {
		return false, &core.EvalError{Msg: "cannot resolve list " + listRef, Err: err}
	}

	for _, addr := range parseAddresses(addrVals) {
		if addr == "" || addr == "nobody" {
			continue
		}
		var ok bool
		switch predicate {
		case "is_subscriber":
			ok, err = list.IsMember(addr)
		case "is_owner":
			ok, err = list.IsAdmin("owner", addr)
			if err == nil && !ok {
				ok, err = e.isListmaster(targetRobot, []string{addr})
			}
		case "is_editor":
			ok, err = list.IsAdmin("editor", addr)
		}
		if err != nil {
			return false, &core.EvalError{Msg: predicate + " lookup failed", Err: err}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) matchRegexp(ectx *core.EvaluationContext, robot string, vals []string, pattern string) (bool, error) {
	if pattern == "" {
		return false, nil
	}

	// A literal [domain]/[host] token inside the pattern stands for the
	// robot's domain, dot-escaped.
	if strings.Contains(pattern, "[domain]") || strings.Contains(pattern, "[host]") {
		domain := robot
		if ectx.List != nil {
			domain = ectx.List.Domain()
		}
		escaped := regexp.QuoteMeta(domain)
		pattern = strings.ReplaceAll(pattern, "[domain]", escaped)
		pattern = strings.ReplaceAll(pattern, "[host]", escaped)
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, &core.EvalError{Msg: "malformed regexp /" + pattern + "/", Err: err}
	}
	return anyElement(vals, re.MatchString), nil
}

// smartLess compares numerically when both operands look numeric, otherwise
// as case-sensitive lexicographic strings.
func smartLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}

func (e *Engine) searchFilter(ctx context.Context, ectx *core.EvaluationContext, robot, filterName string) (bool, error) {
	resolve := func(name, field string) (string, bool, error) {
		vals, miss, err := e.resolveToken(ectx, robot, token{kind: tokVar, name: name, field: field})
		if err != nil || miss {
			return "", miss, err
		}
		return first(vals), false, nil
	}
	return e.search.Search(ctx, robot, filterName, ectx.Sender(), resolve)
}
