package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitSuccess(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.jpg")

	err := Commit(dest, func(tmp string) error {
		assert.Equal(t, filepath.Dir(dest), filepath.Dir(tmp), "tmp must live next to dest")
		assert.NotEqual(t, dest, tmp)
		return os.WriteFile(tmp, []byte("payload"), 0o644)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCommitFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.jpg")
	boom := errors.New("encode blew up")

	err := Commit(dest, func(tmp string) error {
		// simulate a partial write before the failure
		require.NoError(t, os.WriteFile(tmp, []byte("half"), 0o644))
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither dest nor tmp may survive a failed commit")
}

func TestCommitDoesNotClobberOnFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0o644))

	_ = Commit(dest, func(tmp string) error {
		return errors.New("nope")
	})

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data), "existing dest untouched by failed attempt")
}

func TestWriteFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "copy.bin")
	require.NoError(t, WriteFile(dest, []byte{1, 2, 3}, 0o644))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}
