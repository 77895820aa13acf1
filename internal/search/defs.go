package search

import (
	"os"
	"regexp"
	"strings"

	"github.com/mailster/scenario/internal/core"
)

// parseFilterDef reads a .sql/.ldap filter definition: one "key value" pair
// per line, # and ; comments, continuation lines folded via a trailing
// backslash.
func parseFilterDef(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	def := map[string]string{}
	lines := strings.Split(string(raw), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNum := i + 1

		// Fold continuation lines before anything else.
		for strings.HasSuffix(strings.TrimRight(line, " \t"), `\`) && i+1 < len(lines) {
			line = strings.TrimRight(strings.TrimRight(line, " \t"), `\`)
			i++
			line += strings.TrimSpace(lines[i])
		}

		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		key, value, found := strings.Cut(line, " ")
		if !found {
			return nil, &core.ParseError{File: path, Line: lineNum, Msg: "malformed filter definition line"}
		}
		def[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return def, nil
}

var placeholderRe = regexp.MustCompile(`\[(\w+)(?:->([\w-]+))?\]`)

// substitutePlaceholders expands [var]/[var->key] references in a template.
// When collect is non-nil, each resolved value is appended there and the
// placeholder is replaced with the marker instead (used to build
// parameterized SQL).
func substitutePlaceholders(template string, resolve VarResolver, marker string, collect *[]any) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(template, func(ref string) string {
		if firstErr != nil {
			return ref
		}
		m := placeholderRe.FindStringSubmatch(ref)
		value, miss, err := resolve(m[1], m[2])
		if err != nil {
			firstErr = err
			return ref
		}
		if miss {
			firstErr = ErrMissingData
			return ref
		}
		if collect != nil {
			*collect = append(*collect, value)
			return marker
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
