package core

import (
	"strings"
)

// Auth methods recognized by the engine. Every parsed rule carries exactly
// one of these (multi-method rule lines are expanded at parse time).
const (
	AuthSMTP  = "smtp"
	AuthMD5   = "md5"
	AuthPGP   = "pgp"
	AuthSMIME = "smime"
	AuthDKIM  = "dkim"
)

// AuthMethods lists the valid authentication methods in canonical order.
var AuthMethods = []string{AuthSMTP, AuthMD5, AuthPGP, AuthSMIME, AuthDKIM}

// CanonicalAuthMethod maps a caller-supplied method onto a canonical one.
// Callers historically pass decorated variants ("md5chain"), so a canonical
// method matching a prefix of the input is accepted.
func CanonicalAuthMethod(method string) (string, bool) {
	for _, m := range AuthMethods {
		if strings.HasPrefix(method, m) {
			return m, true
		}
	}
	return "", false
}

// Decision actions.
const (
	ActionDoIt        = "do_it"
	ActionReject      = "reject"
	ActionRequestAuth = "request_auth"
	ActionOwner       = "owner"
	ActionEditor      = "editor"
	ActionEditorKey   = "editorkey"
	ActionListmaster  = "listmaster"
	ActionHam         = "ham"
	ActionSpam        = "spam"
	ActionUnsure      = "unsure"
)

var actionVocabulary = map[string]bool{
	ActionDoIt:        true,
	ActionReject:      true,
	ActionRequestAuth: true,
	ActionOwner:       true,
	ActionEditor:      true,
	ActionEditorKey:   true,
	ActionListmaster:  true,
	ActionHam:         true,
	ActionSpam:        true,
	ActionUnsure:      true,
}

// ValidAction reports whether name belongs to the decision action vocabulary.
func ValidAction(name string) bool {
	return actionVocabulary[name]
}

// Rule is one condition/authMethod/action triple from a scenario file.
// An include directive is stored with only Condition set.
type Rule struct {
	Condition  string
	AuthMethod string
	Action     string
	LineNum    int
}

// IsInclude reports whether the rule is an include directive rather than an
// evaluatable rule.
func (r Rule) IsInclude() bool {
	return r.AuthMethod == "" && r.Action == ""
}

// ScenarioDefinition is a parsed scenario: ordered rules plus per-language
// titles. Definitions are immutable once parsed and shared read-only between
// evaluations; the Store owns them.
type ScenarioDefinition struct {
	// Name is the scenario name without the function part, e.g. "private"
	// for a send.private file.
	Name     string
	Function string
	FilePath string
	Source   string

	// Titles maps a language tag to a title. The pseudo-tags "default" and
	// "gettext" are stored alongside canonicalized ISO tags.
	Titles map[string]string

	Rules []Rule

	// Date is the epoch second the definition was loaded from disk, used for
	// mtime staleness checks. Synthetic definitions carry 0 so any real file
	// found later always supersedes them.
	Date int64
}

// Decision is the outcome of one Decide call. Created fresh per evaluation,
// never persisted.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	TT2    string `json:"tt2,omitempty"`
	Quiet  bool   `json:"quiet,omitempty"`

	// AuthMethod and Condition echo the matched rule for diagnostics.
	AuthMethod string `json:"auth_method,omitempty"`
	Condition  string `json:"condition,omitempty"`
}

// User is a global user record as returned by a UserStore. Attributes holds
// the free-form attribute bag referenced by [user_attributes->k].
type User struct {
	Fields     map[string]string
	Attributes map[string]string
}

// MessagePart is one decoded MIME part of a message handle.
type MessagePart struct {
	ContentType string
	Body        string
}
