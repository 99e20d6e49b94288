package jobqueue

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeExec(t *testing.T) {
	got := encodeExec("/tmp/a")
	assert.Equal(t, []byte("EXEC /tmp/a\x00"), got)
}

func TestEncodeFlush(t *testing.T) {
	assert.Equal(t, []byte("FLUSH\x00"), encodeFlush())
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, command{kind: commandExec, path: "/tmp/a"}, parseCommand([]byte("EXEC /tmp/a")))
	assert.Equal(t, command{kind: commandFlush}, parseCommand([]byte("FLUSH")))
	assert.Equal(t, command{kind: commandUnknown}, parseCommand([]byte("BOGUS")))
}

func TestFrameReaderSplitsOnNUL(t *testing.T) {
	buf := bytes.NewBufferString("EXEC /a\x00EXEC /b\x00FLUSH\x00")
	fr := newFrameReader(buf.Read)

	cmd, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, command{kind: commandExec, path: "/a"}, cmd)

	cmd, err = fr.next()
	require.NoError(t, err)
	assert.Equal(t, command{kind: commandExec, path: "/b"}, cmd)

	cmd, err = fr.next()
	require.NoError(t, err)
	assert.Equal(t, command{kind: commandFlush}, cmd)
}

func TestFrameReaderRetainsLeftoverBytes(t *testing.T) {
	r, w := io.Pipe()
	fr := newFrameReader(r.Read)

	go func() {
		_, _ = w.Write([]byte("EXEC /a\x00EXE")) // partial second frame
		_, _ = w.Write([]byte("C /b\x00"))
		w.Close()
	}()

	cmd, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, command{kind: commandExec, path: "/a"}, cmd)

	cmd, err = fr.next()
	require.NoError(t, err)
	assert.Equal(t, command{kind: commandExec, path: "/b"}, cmd)
}

func TestFrameReaderPropagatesEOF(t *testing.T) {
	buf := bytes.NewBufferString("")
	fr := newFrameReader(buf.Read)
	_, err := fr.next()
	assert.ErrorIs(t, err, io.EOF)
}
