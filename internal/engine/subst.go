package engine

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mailster/scenario/internal/core"
)

// resolveToken resolves one condition argument to its value list. A scalar
// is a one-element list; predicates apply any-element semantics uniformly.
//
// miss=true means the referenced data is legitimately absent: the whole
// condition resolves to false rather than erroring, the "missing data means
// deny" policy. Only genuinely malformed references are errors.
func (e *Engine) resolveToken(ectx *core.EvaluationContext, robot string, tok token) (vals []string, miss bool, err error) {
	switch tok.kind {
	case tokLiteral, tokWord, tokRegex:
		return []string{tok.text}, false, nil
	}

	switch tok.name {
	case "custom_vars":
		return []string{ectx.CustomVars[tok.field]}, false, nil

	case "family":
		return []string{ectx.Family[tok.field]}, false, nil

	case "conf":
		val, ok := e.conf.Get(robot, tok.field)
		if !ok {
			return nil, true, nil
		}
		return []string{val}, false, nil

	case "list":
		return e.resolveListVar(ectx, tok.field)

	case "env":
		return []string{os.Getenv(tok.field)}, false, nil

	case "user", "user_attributes":
		user, err := ectx.UserRecord(e.users)
		if err != nil {
			return nil, false, err
		}
		if user == nil {
			return nil, true, nil
		}
		var val string
		var ok bool
		if tok.name == "user" {
			val, ok = user.Fields[tok.field]
		} else {
			val, ok = user.Attributes[tok.field]
		}
		if !ok {
			return nil, true, nil
		}
		return []string{val}, false, nil

	case "subscriber":
		rec, err := ectx.SubscriberRecord(e.users)
		if err != nil {
			return nil, false, err
		}
		if rec == nil {
			return nil, true, nil
		}
		val, ok := rec[tok.field]
		if !ok {
			return nil, true, nil
		}
		return []string{val}, false, nil

	case "msg_header", "header":
		if ectx.Message == nil {
			return nil, true, nil
		}
		values := ectx.Message.Header(tok.field)
		if tok.hasIndex {
			if tok.index < 0 || tok.index >= len(values) {
				return nil, true, nil
			}
			return []string{values[tok.index]}, false, nil
		}
		if len(values) == 0 {
			// A present message with an absent header compares as one empty
			// string so equal()/match() list forms stay well-defined.
			return []string{""}, false, nil
		}
		return values, false, nil

	case "msg_body":
		if ectx.Message == nil {
			return nil, true, nil
		}
		body, ok := ectx.Message.Body()
		if !ok {
			return nil, true, nil
		}
		return []string{body}, false, nil

	case "msg_part":
		if ectx.Message == nil {
			return nil, true, nil
		}
		parts := ectx.Message.Parts()
		vals := make([]string, 0, len(parts))
		switch tok.field {
		case "body":
			for _, p := range parts {
				vals = append(vals, p.Body)
			}
		case "type":
			for _, p := range parts {
				vals = append(vals, p.ContentType)
			}
		default:
			return nil, false, &core.EvalError{Msg: "unknown msg_part field " + tok.field}
		}
		return vals, false, nil

	case "msg":
		if ectx.Message == nil {
			return nil, true, nil
		}
		val, ok := ectx.Message.Field(tok.field)
		if !ok {
			return nil, true, nil
		}
		return []string{val}, false, nil

	case "current_date":
		return []string{strconv.FormatInt(e.clock.Now().Unix(), 10)}, false, nil

	default:
		val, ok := ectx.Get(tok.name)
		if !ok {
			return nil, true, nil
		}
		return anyToList(val), false, nil
	}
}

// resolveListVar handles [list->field]. name/total/address come from the
// handle itself; anything else must be a recognized admin parameter, and an
// unrecognized one is a caller defect rather than missing data.
func (e *Engine) resolveListVar(ectx *core.EvaluationContext, field string) ([]string, bool, error) {
	if ectx.List == nil {
		return nil, true, nil
	}
	switch field {
	case "name":
		return []string{ectx.List.Name()}, false, nil
	case "total":
		return []string{strconv.Itoa(ectx.List.Total())}, false, nil
	case "address":
		return []string{ectx.List.Address()}, false, nil
	}
	val, ok := ectx.List.AdminParam(field)
	if !ok {
		return nil, false, &core.EvalError{Msg: "unknown list parameter " + field}
	}
	if val == nil {
		return nil, true, nil
	}
	return anyToList(val), false, nil
}

// anyToList flattens a context value into a string list.
func anyToList(val any) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case bool:
		if v {
			return []string{"1"}
		}
		return []string{"0"}
	default:
		return []string{fmt.Sprint(v)}
	}
}
