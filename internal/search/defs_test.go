package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDef(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.ldap")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFilterDef(t *testing.T) {
	path := writeDef(t, `# membership filter
host ldap.example.org:389
suffix ou=people,dc=example,dc=org
filter (&(objectClass=person)\
(mail=[sender]))
scope sub
`)
	def, err := parseFilterDef(path)
	require.NoError(t, err)
	assert.Equal(t, "ldap.example.org:389", def["host"])
	assert.Equal(t, "(&(objectClass=person)(mail=[sender]))", def["filter"],
		"trailing backslash folds continuation lines")
	assert.Equal(t, "sub", def["scope"])
}

func TestParseFilterDefMalformedLine(t *testing.T) {
	path := writeDef(t, "host ldap.example.org\njustoneword\n")
	_, err := parseFilterDef(path)
	assert.Error(t, err)
}

func TestSubstitutePlaceholders(t *testing.T) {
	resolve := func(name, field string) (string, bool, error) {
		switch {
		case name == "sender":
			return "a@b.com", false, nil
		case name == "list" && field == "name":
			return "dev", false, nil
		default:
			return "", true, nil
		}
	}

	out, err := substitutePlaceholders("(mail=[sender])(cn=[list->name])", resolve, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "(mail=a@b.com)(cn=dev)", out)

	// Parameter collection mode replaces values with the marker.
	var params []any
	out, err = substitutePlaceholders("SELECT 1 FROM subs WHERE email=[sender] AND list=[list->name]", resolve, "?", &params)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM subs WHERE email=? AND list=?", out)
	assert.Equal(t, []any{"a@b.com", "dev"}, params)

	// Absent data propagates as ErrMissingData.
	_, err = substitutePlaceholders("(mail=[ghost])", resolve, "", nil)
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestGlobToRegexp(t *testing.T) {
	assert.Equal(t, `.*@spam\.example`, globToRegexp("*@spam.example"))
	assert.Equal(t, `bob@evil\.org`, globToRegexp("bob@evil.org"))
	assert.Equal(t, `a\+b@x\.org`, globToRegexp("A+B@x.org"), "patterns are lowercased and escaped")
}
