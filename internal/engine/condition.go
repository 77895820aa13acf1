package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mailster/scenario/internal/core"
)

// tokenKind discriminates condition argument tokens.
type tokenKind int

const (
	tokVar     tokenKind = iota // [name], [name->field], [name->field][idx]
	tokLiteral                  // 'quoted' or "quoted", quotes stripped
	tokRegex                    // /pattern/, delimiters stripped
	tokWord                     // bare word, number, or filter-file name
)

type token struct {
	kind     tokenKind
	text     string // literal/word/regex text
	name     string // variable name for tokVar
	field    string // optional ->field for tokVar
	index    int
	hasIndex bool
}

func (t token) String() string {
	switch t.kind {
	case tokVar:
		s := "[" + t.name
		if t.field != "" {
			s += "->" + t.field
		}
		s += "]"
		if t.hasIndex {
			s += "[" + strconv.Itoa(t.index) + "]"
		}
		return s
	case tokRegex:
		return "/" + t.text + "/"
	default:
		return t.text
	}
}

// condition is one parsed rule condition: an optional negation, a predicate
// name, and its argument tokens. Parsing happens once per evaluation; the
// raw string is kept for diagnostics.
type condition struct {
	negation  int // +1 or -1
	predicate string
	args      []token
	raw       string
}

// builtinArity maps each built-in predicate to its accepted argument counts.
var builtinArity = map[string][2]int{
	"true":           {0, 0},
	"all":            {0, 0},
	"any":            {0, 0},
	"is_listmaster":  {1, 1},
	"verify_netmask": {1, 1},
	"search":         {1, 2},
	"is_owner":       {2, 2},
	"is_editor":      {2, 2},
	"is_subscriber":  {2, 2},
	"less_than":      {2, 2},
	"match":          {2, 2},
	"equal":          {2, 2},
	"message":        {2, 2},
	"older":          {2, 2},
	"newer":          {2, 2},
}

const customPrefix = "customcondition::"

// parseCondition parses "[!]predicate(arg[,arg...])" into a condition.
// An unknown predicate or an arity mismatch is a fatal parse error.
func parseCondition(raw string) (*condition, error) {
	c := &condition{negation: 1, raw: raw}

	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "!") {
		c.negation = -1
		s = strings.TrimSpace(s[1:])
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, &core.EvalError{Condition: raw, Msg: "malformed condition, expected predicate(args)"}
	}
	c.predicate = strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]

	isCustom := strings.HasPrefix(c.predicate, customPrefix)
	if !isCustom {
		if _, known := builtinArity[c.predicate]; !known {
			return nil, &core.EvalError{Condition: raw, Msg: "unknown predicate " + c.predicate}
		}
	} else if len(c.predicate) == len(customPrefix) {
		return nil, &core.EvalError{Condition: raw, Msg: "empty custom condition name"}
	}

	args, err := tokenizeArgs(inner)
	if err != nil {
		return nil, &core.EvalError{Condition: raw, Msg: err.Error()}
	}
	c.args = args

	if !isCustom {
		bounds := builtinArity[c.predicate]
		if len(args) < bounds[0] || len(args) > bounds[1] {
			return nil, &core.EvalError{
				Condition: raw,
				Msg:       fmt.Sprintf("predicate %s takes %d-%d arguments, got %d", c.predicate, bounds[0], bounds[1], len(args)),
			}
		}
	}

	return c, nil
}

// tokenizeArgs scans a comma-separated argument list. Quoted strings, regex
// literals and bracketed variable references may contain commas.
func tokenizeArgs(s string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(s)

	skipSep := func() {
		for i < n && (s[i] == ' ' || s[i] == '\t' || s[i] == ',') {
			i++
		}
	}

	skipSep()
	for i < n {
		switch s[i] {
		case '[':
			tok, next, err := scanVarRef(s, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case '\'', '"':
			quote := s[i]
			end := strings.IndexByte(s[i+1:], quote)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted string at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokLiteral, text: s[i+1 : i+1+end]})
			i += end + 2
		case '/':
			j := i + 1
			for j < n && (s[j] != '/' || s[j-1] == '\\') {
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("unterminated regex at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokRegex, text: s[i+1 : j]})
			i = j + 1
		default:
			j := i
			for j < n && !strings.ContainsRune(", \t", rune(s[j])) {
				j++
			}
			word := s[i:j]
			if word == "" {
				return nil, fmt.Errorf("unexpected character %q at offset %d", s[i], i)
			}
			tokens = append(tokens, token{kind: tokWord, text: word})
			i = j
		}
		skipSep()
	}
	return tokens, nil
}

// scanVarRef parses [name], [name->field] and an optional [idx] suffix
// starting at s[start] == '['.
func scanVarRef(s string, start int) (token, int, error) {
	end := strings.IndexByte(s[start:], ']')
	if end < 0 {
		return token{}, 0, fmt.Errorf("unterminated variable reference at offset %d", start)
	}
	end += start
	inner := s[start+1 : end]

	tok := token{kind: tokVar, name: inner}
	if name, field, found := strings.Cut(inner, "->"); found {
		tok.name = name
		tok.field = field
	}
	if tok.name == "" {
		return token{}, 0, fmt.Errorf("empty variable reference at offset %d", start)
	}

	next := end + 1
	// Optional numeric index: [msg_header->subject][0]
	if next < len(s) && s[next] == '[' {
		closing := strings.IndexByte(s[next:], ']')
		if closing < 0 {
			return token{}, 0, fmt.Errorf("unterminated index at offset %d", next)
		}
		idx, err := strconv.Atoi(s[next+1 : next+closing])
		if err != nil {
			return token{}, 0, fmt.Errorf("non-numeric index at offset %d", next)
		}
		tok.index = idx
		tok.hasIndex = true
		next += closing + 1
	}
	return tok, next, nil
}
