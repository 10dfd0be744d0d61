package composition

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/gate"
	"github.com/cyphal-tools/orchestrate/internal/schema"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, yamlSrc string) (int, string) {
	t.Helper()
	comp, err := schema.Load([]byte(yamlSrc), envtable.New())
	require.NoError(t, err)

	var stdout bytes.Buffer
	ctx := &Context{Stdout: &stdout, Stderr: &stdout}
	code := Run(ctx, comp, gate.AlwaysAlive, nil, nil)
	return code, stdout.String()
}

// S1: concurrency + join. sleep, echo, join, echo must observe the join
// barrier: "done" only appears after "hello" completes.
func TestConcurrencyAndJoin(t *testing.T) {
	start := time.Now()
	code, out := run(t, `
$=: [sleep 1, echo hello, null, echo done]
`)
	elapsed := time.Since(start)
	require.Equal(t, 0, code)
	require.Less(t, elapsed, 3*time.Second)
	helloIdx := strings.Index(out, "hello")
	doneIdx := strings.Index(out, "done")
	require.GreaterOrEqual(t, helloIdx, 0)
	require.GreaterOrEqual(t, doneIdx, 0)
	require.Less(t, helloIdx, doneIdx)
}

// S5: finalizer under failure. Main fails with 88; finalizer still runs
// and its own success does not mask main's failure.
func TestFinalizerRunsUnderMainFailure(t *testing.T) {
	code, out := run(t, `
$=: 'exit 88'
.=: 'echo fin'
`)
	require.Equal(t, 88, code)
	require.Contains(t, out, "fin")
}

// S6: predicate swallow. A failing predicate reports success and skips main.
func TestPredicateSwallow(t *testing.T) {
	code, out := run(t, `
?=: 'false'
$=: 'echo should-not-run'
`)
	require.Equal(t, 0, code)
	require.NotContains(t, out, "should-not-run")
}

func TestPredicateFailureSkipsFinalizerToo(t *testing.T) {
	code, out := run(t, `
?=: 'false'
$=: 'echo main'
.=: 'echo fin'
`)
	require.Equal(t, 0, code)
	require.NotContains(t, out, "main")
	require.NotContains(t, out, "fin")
}

func TestFirstFailureWins(t *testing.T) {
	code, _ := run(t, `
$=: ['sleep 0.2 && exit 3', 'exit 9']
`)
	require.Equal(t, 9, code)
}

func TestNestedCompositionStatement(t *testing.T) {
	code, out := run(t, `
$=:
  - FOO: 7
    $=: 'echo $FOO'
`)
	require.Equal(t, 0, code)
	require.Contains(t, out, "7")
}

func TestMissingExternalFileYieldsFileError(t *testing.T) {
	code, _ := run(t, `
external=: [does-not-exist.yaml]
$=: 'echo hi'
`)
	require.Equal(t, 124, code)
}

// A relative external= reference resolves against the directory of the
// file that references it, even when that directory is not among
// ctx.SearchDirs (supplemented from the original's locate(), which
// checks the referencing file's own directory before the configured
// lookup paths).
func TestExternalResolvesRelativeToReferencingFileDir(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, os.WriteFile(rootDir+"/child.yaml", []byte("FOO: 456\n"), 0o644))
	require.NoError(t, os.WriteFile(rootDir+"/root.yaml", []byte(`
external=: [child.yaml]
$=: 'echo $FOO'
`), 0o644))

	var stdout bytes.Buffer
	// ctx.SearchDirs is deliberately empty: child.yaml must still resolve
	// because root.yaml's own directory is searched first.
	ctx := &Context{Stdout: &stdout, Stderr: &stdout}
	code := RunFile(ctx, rootDir+"/root.yaml", envtable.New(), gate.AlwaysAlive, nil, nil)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "456")
}

// S4: external env propagation. File A sets FOO; file B imports A and
// echoes $FOO.
func TestExternalEnvPropagation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/a.yaml", []byte("FOO: 123\n"), 0o644))

	comp, err := schema.Load([]byte(`
external=: [a.yaml]
$=: 'echo $FOO'
`), envtable.New())
	require.NoError(t, err)

	var stdout bytes.Buffer
	ctx := &Context{SearchDirs: []string{dir}, Stdout: &stdout, Stderr: &stdout}
	code := Run(ctx, comp, gate.AlwaysAlive, nil, []string{dir})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "123")
}
