package supervisor

import (
	"bytes"
	"testing"
	"time"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/stretchr/testify/require"
)

func TestStartAndPollExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start("exit 7", envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	code, exited := c.Poll(2 * time.Second)
	require.True(t, exited)
	require.Equal(t, 7, code)
}

func TestPollTimesOutWhileRunning(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start("sleep 1", envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	_, exited := c.Poll(10 * time.Millisecond)
	require.False(t, exited)

	code, exited := c.Poll(2 * time.Second)
	require.True(t, exited)
	require.Equal(t, 0, code)
}

func TestStdoutIsCaptured(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start("echo hello", envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	_, exited := c.Poll(2 * time.Second)
	require.True(t, exited)
	require.Equal(t, "hello\n", stdout.String())
}

func TestEnvIsOverlaid(t *testing.T) {
	env := envtable.New()
	require.NoError(t, envtable.ApplyEntry(env, "GREETING", "hi"))

	var stdout, stderr bytes.Buffer
	c, err := Start(`echo "$GREETING"`, env, &stdout, &stderr, nil)
	require.NoError(t, err)

	_, exited := c.Poll(2 * time.Second)
	require.True(t, exited)
	require.Equal(t, "hi\n", stdout.String())
}

// A process that ignores the interrupt signal must be escalated to
// terminate, mirroring _child.py's two-stage escalation.
func TestStopEscalatesPastIgnoredInterrupt(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start(`trap '' INT; sleep 5`, envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	c.Stop(50*time.Millisecond, 2*time.Second)

	code, exited := c.Poll(3 * time.Second)
	require.True(t, exited)
	require.NotEqual(t, 0, code)
}

func TestStopIsIdempotent(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start("sleep 5", envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	c.Stop(time.Second, 2*time.Second)
	c.Stop(time.Second, 2*time.Second) // must not panic or double-close done

	code, exited := c.Poll(3 * time.Second)
	require.True(t, exited)
	require.NotEqual(t, 0, code)
}

func TestKillForcesExit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c, err := Start(`trap '' INT TERM; sleep 5`, envtable.New(), &stdout, &stderr, nil)
	require.NoError(t, err)

	c.Kill()

	code, exited := c.Poll(3 * time.Second)
	require.True(t, exited)
	require.NotEqual(t, 0, code)
}
