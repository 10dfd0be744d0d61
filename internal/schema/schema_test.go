package schema

import (
	"strings"
	"testing"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/stretchr/testify/require"
)

func TestLoadBasicExample(t *testing.T) {
	// Grounded on original_source/yakut/cmd/orchestrate/__init__.py EXAMPLE_BASIC.
	doc := []byte(`
$=:
- sleep 10
- echo $GREETING
-
- $=: echo $GREETING
  GREETING: bar
- ?=:
    $=: sleep 1
    .=: unknown-command-failure-ignored
-
- exit 88
.=: echo finalizer
GREETING: Hello world!
`)
	comp, err := Load(doc, envtable.New())
	require.NoError(t, err)

	greet, ok := comp.Env.Get("GREETING")
	require.True(t, ok)
	require.Equal(t, "Hello world!", string(greet))

	require.Len(t, comp.Main, 7)
	require.Equal(t, KindShell, comp.Main[0].Kind)
	require.Equal(t, "sleep 10", comp.Main[0].Shell)
	require.Equal(t, KindShell, comp.Main[1].Kind)
	require.Equal(t, KindJoin, comp.Main[2].Kind)
	require.Equal(t, KindNested, comp.Main[3].Kind)
	nestedGreet, _ := comp.Main[3].Nested.Env.Get("GREETING")
	require.Equal(t, "bar", string(nestedGreet))
	require.Equal(t, KindNested, comp.Main[4].Kind)
	require.Len(t, comp.Main[4].Nested.Predicate, 1)
	require.Equal(t, KindJoin, comp.Main[5].Kind)

	require.Len(t, comp.Fin, 1)
	require.Equal(t, "echo finalizer", comp.Fin[0].Shell)
}

func TestLoadExternalDirective(t *testing.T) {
	doc := []byte(`
external=:
- vars.orc.yaml
- echo.orc.yaml
.=: exit $EXIT_CODE
`)
	comp, err := Load(doc, envtable.New())
	require.NoError(t, err)
	require.Equal(t, []External{{File: "vars.orc.yaml"}, {File: "echo.orc.yaml"}}, comp.Ext)
}

func TestLoadRegisterNaming(t *testing.T) {
	doc := []byte(`
m.motor:
  inductance_dq: [0.12, 0.13]
uavcan:
  node.id: 1201
`)
	comp, err := Load(doc, envtable.New())
	require.NoError(t, err)
	v, ok := comp.Env.Get("M__MOTOR__INDUCTANCE_DQ")
	require.True(t, ok)
	require.Equal(t, "0.12 0.13", string(v))
	v, ok = comp.Env.Get("UAVCAN__NODE__ID")
	require.True(t, ok)
	require.Equal(t, "1201", string(v))
}

func TestLoadNullRemovesInheritedEntry(t *testing.T) {
	env := envtable.New()
	env.Set("FOO", []byte("bar"))
	comp, err := Load([]byte("FOO: null\n"), env)
	require.NoError(t, err)
	_, ok := comp.Env.Get("FOO")
	require.False(t, ok)
}

func TestLoadUnknownDirectiveSuggestsClosest(t *testing.T) {
	_, err := Load([]byte("ext=: foo.yaml\n"), envtable.New())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown directive"))
	require.True(t, strings.Contains(err.Error(), `did you mean "external="`))
}

func TestLoadKillTimeout(t *testing.T) {
	comp, err := Load([]byte("(kill_timeout): 5.5\n"), envtable.New())
	require.NoError(t, err)
	require.Equal(t, 5.5, comp.KillTimeout)

	comp, err = Load([]byte("FOO: bar\n"), envtable.New())
	require.NoError(t, err)
	require.Equal(t, DefaultKillTimeout, comp.KillTimeout)
}

func TestLoadNonMappingTopLevelFails(t *testing.T) {
	_, err := Load([]byte("- just\n- a\n- list\n"), envtable.New())
	require.Error(t, err)
}

func TestLoadInvalidStatementShapeFails(t *testing.T) {
	_, err := Load([]byte("$=: [1, 2, 3]\n"), envtable.New())
	require.Error(t, err)
}
