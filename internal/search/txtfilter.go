package search

import (
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/core"
)

// searchTxt matches the lowercased sender against glob patterns, one per
// line, across every resolved copy of the filter file in precedence order.
// The first matching line anywhere wins.
//
// A missing file is an error for ordinary filters; the configured deny-list
// file is the one deliberate exception and is simply false when absent, so
// installs without a deny-list keep working.
func (e *Engine) searchTxt(robot, filterName, sender string) (bool, error) {
	sender = strings.ToLower(sender)
	key := robot + "\x00" + filterName + "\x00" + sender

	return e.cachedBool(key, func() (bool, error) {
		files := e.findFilterFiles(robot, filterName)
		if len(files) == 0 {
			if filterName == e.blacklistFile {
				return false, nil
			}
			return false, &core.EvalError{Msg: "txt filter file " + filterName + " not found"}
		}

		for _, path := range files {
			matched, err := matchTxtFile(path, sender)
			if err != nil {
				return false, err
			}
			if matched {
				e.logger.Debug("Sender matched txt filter",
					zap.String("filter", path),
					zap.String("sender", sender))
				return true, nil
			}
		}
		return false, nil
	})
}

func matchTxtFile(path, sender string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, &core.EvalError{Msg: "cannot read txt filter " + path, Err: err}
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		re, err := regexp.Compile("^" + globToRegexp(line) + "$")
		if err != nil {
			return false, &core.ParseError{File: path, Msg: "bad filter pattern " + line}
		}
		if re.MatchString(sender) {
			return true, nil
		}
	}
	return false, nil
}

// globToRegexp turns a deny-list glob into a regexp: * becomes .*, every
// other byte is matched literally (case folded by lowercasing beforehand).
func globToRegexp(pattern string) string {
	var b strings.Builder
	for i, chunk := range strings.Split(strings.ToLower(pattern), "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(chunk))
	}
	return b.String()
}
