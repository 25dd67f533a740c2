package transient

import (
	"os"
	"syscall"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsErrno(t *testing.T) {
	for _, e := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOSPC, syscall.ENOMEM} {
		assert.True(t, Is(e), "errno %v", e)
	}
}

func TestIsWrappedErrno(t *testing.T) {
	err := &os.PathError{Op: "open", Path: "/x", Err: syscall.EMFILE}
	assert.True(t, Is(err))
	assert.True(t, Is(errors.Wrap(err, "decode input")))
}

func TestIsMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"write /tmp/out: no space left on device", true},
		{"fork/exec sips: Cannot allocate memory", true},
		{"sips: out of memory", true},
		{"open source.jpg: too many open files", true},
		{"png: invalid format: bad checksum", false},
		{"image: unknown format", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Is(errors.New(c.msg)), c.msg)
	}
}

func TestIsContentErrorsAndNil(t *testing.T) {
	assert.False(t, Is(nil))
	assert.False(t, Is(errors.New("jpeg: invalid JPEG format: missing SOI marker")))
	assert.False(t, Is(os.ErrNotExist))
}
