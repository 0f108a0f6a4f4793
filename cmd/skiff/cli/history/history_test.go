package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "history.jsonl")
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	tr, err := Load(transcriptPath(t))
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Len())
}

func TestAppendAndReload(t *testing.T) {
	path := transcriptPath(t)

	tr, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, tr.Append(Entry{Role: "user", Content: "hello", Timestamp: time.Now().UTC()}))
	require.NoError(t, tr.Append(Entry{Role: "assistant", Content: "hi", Timestamp: time.Now().UTC()}))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Len())

	entries := reloaded.Entries()
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "hi", entries[1].Content)
}

func TestPopWritesThrough(t *testing.T) {
	path := transcriptPath(t)

	tr, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, tr.Append(Entry{Role: "user", Content: "first"}))
	require.NoError(t, tr.Append(Entry{Role: "user", Content: "second"}))

	assert.True(t, tr.Pop())
	assert.Equal(t, 1, tr.Len())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "first", reloaded.Entries()[0].Content)
}

func TestPopEmpty(t *testing.T) {
	tr, err := Load(transcriptPath(t))
	require.NoError(t, err)
	assert.False(t, tr.Pop())
}

func TestAppendScrubsSecrets(t *testing.T) {
	path := transcriptPath(t)

	tr, err := Load(path)
	require.NoError(t, err)
	secret := "sk-ant-REDACTED"
	require.NoError(t, tr.Append(Entry{Role: "user", Content: "my key is " + secret}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), secret)
	assert.Contains(t, string(raw), "REDACTED")
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := transcriptPath(t)
	content := `{"role":"user","content":"a"}` + "\n\n" + `{"role":"assistant","content":"b"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tr, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Len())
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := transcriptPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
