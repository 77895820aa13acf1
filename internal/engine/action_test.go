package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailster/scenario/internal/core"
)

func TestParseActionBasics(t *testing.T) {
	for _, name := range []string{"do_it", "request_auth", "owner", "editor", "editorkey", "listmaster"} {
		d, err := parseAction(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Action)
		assert.False(t, d.Quiet)
	}
}

func TestParseActionRejectParameters(t *testing.T) {
	d, err := parseAction("reject(reason='subscribe-closed',tt2='closed')")
	require.NoError(t, err)
	assert.Equal(t, core.ActionReject, d.Action)
	assert.Equal(t, "subscribe-closed", d.Reason)
	assert.Equal(t, "closed", d.TT2)

	// A bare positional value names the template.
	d, err = parseAction("reject('custom_template')")
	require.NoError(t, err)
	assert.Equal(t, "custom_template", d.TT2)
}

func TestParseActionQuiet(t *testing.T) {
	d, err := parseAction("reject,quiet")
	require.NoError(t, err)
	assert.Equal(t, core.ActionReject, d.Action)
	assert.True(t, d.Quiet)

	d, err = parseAction("reject(reason='blocked'),quiet")
	require.NoError(t, err)
	assert.True(t, d.Quiet)
	assert.Equal(t, "blocked", d.Reason)
}

func TestParseActionVerdicts(t *testing.T) {
	for _, verdict := range []string{"ham", "spam", "unsure"} {
		d, err := parseAction(verdict)
		require.NoError(t, err, verdict)
		assert.Equal(t, verdict, d.Action)
	}
}

func TestParseActionRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"allow", "do_everything", "reject(reason=unquoted)"} {
		_, err := parseAction(raw)
		assert.Error(t, err, raw)
	}
}
