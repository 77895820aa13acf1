package search

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/core"
)

// LDAPBackend executes .ldap named filters as existence-only searches.
type LDAPBackend struct {
	logger  *zap.Logger
	timeout time.Duration

	// dial is swappable for tests.
	dial func(url string, useTLS bool, timeout time.Duration) (ldapConn, error)
}

// ldapConn is the slice of *ldap.Conn the backend uses.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// NewLDAPBackend creates an LDAP filter backend.
func NewLDAPBackend(logger *zap.Logger, timeout time.Duration) *LDAPBackend {
	return &LDAPBackend{
		logger:  logger,
		timeout: timeout,
		dial: func(url string, useTLS bool, timeout time.Duration) (ldapConn, error) {
			opts := []ldap.DialOpt{
				ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
			}
			if useTLS {
				opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{}))
			}
			return ldap.DialURL(url, opts...)
		},
	}
}

var ldapScopes = map[string]int{
	"base": ldap.ScopeBaseObject,
	"one":  ldap.ScopeSingleLevel,
	"sub":  ldap.ScopeWholeSubtree,
}

// searchLDAP loads the named LDAP filter definition, substitutes its
// placeholders with filter-escaped values and issues a search restricted to
// attribute 1.1 (no attributes fetched); zero matches is false.
func (e *Engine) searchLDAP(ctx context.Context, robot, filterName string, resolve VarResolver) (bool, error) {
	if e.ldap == nil {
		return false, &core.EvalError{Msg: "no LDAP backend configured for filter " + filterName}
	}

	path, err := e.findFilterFile(robot, filterName)
	if err != nil {
		return false, &core.EvalError{Msg: "ldap filter " + filterName, Err: err}
	}
	def, err := parseFilterDef(path)
	if err != nil {
		return false, err
	}
	for _, required := range []string{"host", "suffix", "filter"} {
		if def[required] == "" {
			return false, &core.ParseError{File: path, Msg: "ldap filter missing required key " + required}
		}
	}

	// Placeholder values are escaped per RFC 4515 before they land in the
	// filter expression.
	escaping := func(name, field string) (string, bool, error) {
		value, miss, err := resolve(name, field)
		if err != nil || miss {
			return "", miss, err
		}
		return ldap.EscapeFilter(value), false, nil
	}
	filter, err := substitutePlaceholders(def["filter"], escaping, "", nil)
	if err != nil {
		return false, err
	}
	key := robot + "\x00" + filterName + "\x00" + filter

	return e.cachedBool(key, func() (bool, error) {
		return e.ldap.exists(ctx, def, filter)
	})
}

func (b *LDAPBackend) exists(ctx context.Context, def map[string]string, filter string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	host := def["host"]
	useTLS := def["use_tls"] == "1" || strings.EqualFold(def["use_tls"], "yes")

	timeout := b.timeout
	if def["timeout"] != "" {
		secs, err := strconv.Atoi(def["timeout"])
		if err != nil {
			return false, &core.EvalError{Msg: "bad ldap timeout " + def["timeout"]}
		}
		timeout = time.Duration(secs) * time.Second
	}
	// A caller deadline caps both the search time limit and the dial.
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	url := host
	if !strings.Contains(url, "://") {
		if useTLS {
			url = "ldaps://" + url
		} else {
			url = "ldap://" + url
		}
	}

	conn, err := b.dial(url, useTLS, timeout)
	if err != nil {
		return false, &core.EvalError{Msg: "ldap connect to " + host + " failed", Err: err}
	}
	defer conn.Close()

	if def["bind_dn"] != "" {
		if err := conn.Bind(def["bind_dn"], def["bind_password"]); err != nil {
			return false, &core.EvalError{Msg: "ldap bind failed", Err: err}
		}
	}

	scope, ok := ldapScopes[def["scope"]]
	if !ok {
		if def["scope"] != "" {
			return false, &core.EvalError{Msg: "unknown ldap scope " + def["scope"]}
		}
		scope = ldap.ScopeWholeSubtree
	}

	req := ldap.NewSearchRequest(
		def["suffix"],
		scope,
		ldap.NeverDerefAliases,
		0,
		int(timeout.Seconds()),
		false,
		filter,
		[]string{"1.1"}, // existence only, fetch no attributes
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return false, &core.EvalError{Msg: fmt.Sprintf("ldap search %q failed", filter), Err: err}
	}

	found := len(res.Entries) > 0
	b.logger.Debug("LDAP filter evaluated",
		zap.String("suffix", def["suffix"]),
		zap.Bool("result", found))
	return found, nil
}
