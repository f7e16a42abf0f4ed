package history

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_ring(t *testing.T) {
	log := New(3)

	assert.Empty(t, log.Entries())
	for i := 1; i <= 5; i++ {
		require.NoError(t, log.Add(fmt.Sprintf("cmd %d\n", i)))
	}

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, 3, log.Size())
	assert.Equal(t, []string{"cmd 3", "cmd 4", "cmd 5"}, log.Entries())
}

func TestLog_partial(t *testing.T) {
	log := New(10)
	require.NoError(t, log.Add("ls"))
	require.NoError(t, log.Add("   "))
	require.NoError(t, log.Add(""))
	require.NoError(t, log.Add("pwd"))

	assert.Equal(t, []string{"ls", "pwd"}, log.Entries())
}

func TestLog_clear(t *testing.T) {
	log := New(2)
	require.NoError(t, log.Add("a"))
	require.NoError(t, log.Add("b"))
	require.NoError(t, log.Add("c"))
	log.Clear()

	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Entries())

	require.NoError(t, log.Add("d"))
	assert.Equal(t, []string{"d"}, log.Entries())
}

func TestLog_writeTo(t *testing.T) {
	log := New(5)
	require.NoError(t, log.Add("echo one"))
	require.NoError(t, log.Add("jobs"))

	buf := &bytes.Buffer{}
	_, err := log.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, "    1  echo one\n    2  jobs\n", buf.String())
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "history", []byte("one\ntwo\n\nthree\nfour\n"), 0600))

	log, err := Open(fs, "history", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three", "four"}, log.Entries())

	require.NoError(t, log.Add("five"))
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	contents, err := afero.ReadFile(fs, "history")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n\nthree\nfour\nfive\n", string(contents))
}

func TestOpen_missingFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	log, err := Open(fs, "history", 3)
	require.NoError(t, err)
	assert.Empty(t, log.Entries())

	require.NoError(t, log.Add("first"))
	require.NoError(t, log.Close())

	contents, err := afero.ReadFile(fs, "history")
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(contents))
}
