package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionBasics(t *testing.T) {
	c, err := parseCondition("equal([sender],'me@example.com')")
	require.NoError(t, err)
	assert.Equal(t, 1, c.negation)
	assert.Equal(t, "equal", c.predicate)
	require.Len(t, c.args, 2)
	assert.Equal(t, tokVar, c.args[0].kind)
	assert.Equal(t, "sender", c.args[0].name)
	assert.Equal(t, tokLiteral, c.args[1].kind)
	assert.Equal(t, "me@example.com", c.args[1].text)
}

func TestParseConditionNegation(t *testing.T) {
	c, err := parseCondition("!true()")
	require.NoError(t, err)
	assert.Equal(t, -1, c.negation)
	assert.Equal(t, "true", c.predicate)
	assert.Empty(t, c.args)
}

func TestParseConditionVarPaths(t *testing.T) {
	c, err := parseCondition("equal([msg_header->X-Loop][0],'on')")
	require.NoError(t, err)
	tok := c.args[0]
	assert.Equal(t, "msg_header", tok.name)
	assert.Equal(t, "X-Loop", tok.field)
	assert.True(t, tok.hasIndex)
	assert.Equal(t, 0, tok.index)
}

func TestParseConditionRegexArg(t *testing.T) {
	// Commas and escaped slashes inside the regex must not split arguments.
	c, err := parseCondition(`match([sender],/^bob{1,3}\/x@example\.com$/)`)
	require.NoError(t, err)
	require.Len(t, c.args, 2)
	assert.Equal(t, tokRegex, c.args[1].kind)
	assert.Equal(t, `^bob{1,3}\/x@example\.com$`, c.args[1].text)
}

func TestParseConditionFilterFileToken(t *testing.T) {
	c, err := parseCondition("search(subscribers.ldap,[sender])")
	require.NoError(t, err)
	assert.Equal(t, tokWord, c.args[0].kind)
	assert.Equal(t, "subscribers.ldap", c.args[0].text)
}

func TestParseConditionCustom(t *testing.T) {
	c, err := parseCondition("customcondition::is_vip([sender],'gold',42)")
	require.NoError(t, err)
	assert.Equal(t, "customcondition::is_vip", c.predicate)
	assert.Len(t, c.args, 3)
}

func TestParseConditionErrors(t *testing.T) {
	for _, raw := range []string{
		"frobnicate([sender])",       // unknown predicate
		"equal([sender])",            // arity
		"true",                       // no parens
		"equal([sender],'unclosed)",  // unterminated quote
		"match([sender],/unclosed)",  // unterminated regex
		"customcondition::([sender])", // empty custom name
	} {
		_, err := parseCondition(raw)
		assert.Error(t, err, raw)
	}
}
