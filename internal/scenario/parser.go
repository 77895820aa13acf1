package scenario

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/mailster/scenario/internal/core"
)

var (
	paragraphRe = regexp.MustCompile(`^\w+$`)
	titleRe     = regexp.MustCompile(`^title(?:\.(\S+))?\s+(.+?)\s*$`)
	includeRe   = regexp.MustCompile(`(?i)^include\s*\(?\s*'?([\w.-]+)'?\s*\)?$`)
	ruleRe      = regexp.MustCompile(`^(.+?)\s*->\s*(.+?)\s*$`)
	methodsRe   = regexp.MustCompile(`^(.*?)\s+((?:(?:md5|pgp|smtp|smime|dkim)\s*,\s*)*(?:md5|pgp|smtp|smime|dkim))$`)
)

// Parse converts raw scenario text into a definition. A single malformed
// line fails the whole scenario; bad lines are never skipped. The caller
// (the Store) fills in FilePath and Date.
func Parse(function, name, src string) (*core.ScenarioDefinition, error) {
	def := &core.ScenarioDefinition{
		Name:     name,
		Function: function,
		Source:   src,
		Titles:   map[string]string{},
	}

	for i, raw := range strings.Split(src, "\n") {
		lineNum := i + 1

		line := raw
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Bare paragraph-name lines carry no semantics.
		if paragraphRe.MatchString(line) {
			continue
		}

		if m := titleRe.FindStringSubmatch(line); m != nil {
			lang, text := m[1], m[2]
			switch lang {
			case "":
				def.Titles["default"] = text
			case "gettext":
				def.Titles["gettext"] = text
			default:
				def.Titles[canonicalLang(lang)] = text
			}
			continue
		}

		if m := includeRe.FindStringSubmatch(line); m != nil {
			def.Rules = append(def.Rules, core.Rule{
				Condition: "include(" + m[1] + ")",
				LineNum:   lineNum,
			})
			continue
		}

		if m := ruleRe.FindStringSubmatch(line); m != nil {
			lhs, action := m[1], m[2]
			condition := lhs
			methods := []string{core.AuthSMTP}
			if mm := methodsRe.FindStringSubmatch(lhs); mm != nil && strings.TrimSpace(mm[1]) != "" {
				condition = strings.TrimSpace(mm[1])
				methods = splitMethods(mm[2])
			}
			// One Rule per listed auth method; identity after parsing is
			// always single-method.
			for _, method := range methods {
				def.Rules = append(def.Rules, core.Rule{
					Condition:  condition,
					AuthMethod: method,
					Action:     action,
					LineNum:    lineNum,
				})
			}
			continue
		}

		return nil, &core.ParseError{
			File: name,
			Line: lineNum,
			Msg:  "malformed scenario line: " + strings.TrimSpace(raw),
		}
	}

	return def, nil
}

func splitMethods(list string) []string {
	var methods []string
	for _, m := range strings.Split(list, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

// canonicalLang normalizes a title language tag, falling back to the raw tag
// when it is not a recognizable language.
func canonicalLang(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return t.String()
}
