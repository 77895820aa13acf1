package engine

import (
	"regexp"
	"strings"

	"github.com/mailster/scenario/internal/core"
)

var (
	verdictRe     = regexp.MustCompile(`^\s*(ham|spam|unsure)\b`)
	actionBaseRe  = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]*)\))?\s*(,\s*quiet)?\s*$`)
	rejectParamRe = regexp.MustCompile(`^(?:(reason|tt2)\s*=\s*)?'([^']*)'$`)
)

// parseAction turns a raw rule action string into a decision skeleton.
// The parsed base action must belong to the decision vocabulary; anything
// else fails the whole decision.
func parseAction(raw string) (*core.Decision, error) {
	// A leading ham/spam/unsure token is the verdict, taken verbatim.
	if m := verdictRe.FindStringSubmatch(raw); m != nil {
		return &core.Decision{Action: m[1]}, nil
	}

	m := actionBaseRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, core.NewInputError("unparsable action %q", raw)
	}
	base, params, quiet := m[1], m[2], m[3] != ""

	if !core.ValidAction(base) {
		return nil, core.NewInputError("unknown action %q", base)
	}

	d := &core.Decision{Action: base, Quiet: quiet}
	if base == core.ActionReject && params != "" {
		for _, param := range strings.Split(params, ",") {
			param = strings.TrimSpace(param)
			if param == "" {
				continue
			}
			if param == "quiet" {
				d.Quiet = true
				continue
			}
			pm := rejectParamRe.FindStringSubmatch(param)
			if pm == nil {
				return nil, core.NewInputError("unparsable reject parameter %q", param)
			}
			switch pm[1] {
			case "reason":
				d.Reason = pm[2]
			default:
				// Bare positional value and tt2= both name a template.
				d.TT2 = pm[2]
			}
		}
	}
	return d, nil
}
