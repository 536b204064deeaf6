package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("fetched payload", "source", "owid", "bytes", 1024)

	assert.Equal(t, "[DEBUG] fetched payload source=owid bytes=1024\n", buf.String())
}

func TestInfo_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Info("ignored")
	Debug("ignored")

	assert.Zero(t, buf.Len())
}

func TestWarn_AlwaysWritten(t *testing.T) {
	buf := capture(t, false)

	Warn("falling back to archive", "reason", "status 503 Service Unavailable")

	assert.Equal(t, "[WARN] falling back to archive reason=\"status 503 Service Unavailable\"\n", buf.String())
}

func TestError_OddPairs(t *testing.T) {
	buf := capture(t, false)

	Error("refresh failed", "root")

	assert.Equal(t, "[ERROR] refresh failed root=<missing>\n", buf.String())
}
