package engine

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/mailster/scenario/internal/core"
)

// GetCurrentTitle picks the scenario title best matching the caller's
// language preferences, falling back to the gettext key, the default title,
// and finally the scenario name.
func GetCurrentTitle(def *core.ScenarioDefinition, langPrefs []string) string {
	if def == nil {
		return ""
	}

	var available []language.Tag
	var keys []string
	for lang := range def.Titles {
		if lang == "default" || lang == "gettext" {
			continue
		}
		tag, err := language.Parse(lang)
		if err != nil {
			continue
		}
		available = append(available, tag)
		keys = append(keys, lang)
	}

	if len(available) > 0 && len(langPrefs) > 0 {
		var wanted []language.Tag
		for _, pref := range langPrefs {
			if tag, err := language.Parse(pref); err == nil {
				wanted = append(wanted, tag)
			}
		}
		if len(wanted) > 0 {
			matcher := language.NewMatcher(available)
			if _, idx, conf := matcher.Match(wanted...); conf > language.No {
				return def.Titles[keys[idx]]
			}
		}
	}

	if title, ok := def.Titles["gettext"]; ok {
		return title
	}
	if title, ok := def.Titles["default"]; ok {
		return title
	}
	return def.Name
}

// IsPurelyClosed reports whether every rule of the definition either has the
// literal true condition or carries a rejecting action; such a scenario can
// never allow anything.
func IsPurelyClosed(def *core.ScenarioDefinition) bool {
	for _, rule := range def.Rules {
		cond := strings.TrimSpace(rule.Condition)
		if cond != "true()" && cond != "true" && !strings.Contains(rule.Action, core.ActionReject) {
			return false
		}
	}
	return true
}
