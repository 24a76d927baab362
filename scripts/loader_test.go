package scripts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laughprop/obj"
)

const sampleScript = `
- kind: init_state
- kind: per_player
  ops:
    - kind: wait_var
      var: "@@choice"
- kind: ui
  ui:
    command: show_banner
    param: "welcome"
    sendToAll: true
- kind: wait_var_all
  var: "@@choice"
`

func TestParseScriptBasicShape(t *testing.T) {
	script, err := Parse([]byte(sampleScript))
	require.NoError(t, err)
	require.Len(t, script, 4)

	assert.Equal(t, obj.OpInitState, script[0].Kind)

	require.Equal(t, obj.OpPerPlayer, script[1].Kind)
	require.Len(t, script[1].Ops, 1)
	assert.Equal(t, obj.OpWaitVar, script[1].Ops[0].Kind)
	assert.Equal(t, "@@choice", script[1].Ops[0].Args["var"].Str)

	require.Equal(t, obj.OpUI, script[2].Kind)
	require.NotNil(t, script[2].UI)
	assert.Equal(t, "show_banner", script[2].UI.Command)
	assert.True(t, script[2].UI.SendToAll)
	assert.Equal(t, "welcome", script[2].UI.Param.Str)

	assert.Equal(t, obj.OpWaitVarAll, script[3].Kind)
}

func TestParseScriptRejectsMissingKind(t *testing.T) {
	_, err := Parse([]byte("- var: \"@x\"\n"))
	assert.Error(t, err)
}
