// Package transient classifies failures as OS resource exhaustion.
//
// The pipeline treats exhausted descriptors, disk space, or memory very
// differently from corrupt input: exhaustion aborts the item (and feeds the
// concurrency controller's backpressure signal) while content errors fall
// through to the next fallback stage.
package transient

import (
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Errno values that indicate resource exhaustion. Checked with errors.Is so
// wrapped os.PathError / os.SyscallError chains are recognized.
var errnos = []syscall.Errno{
	syscall.EMFILE, // process file-descriptor table full
	syscall.ENFILE, // system file table full
	syscall.ENOSPC,
	syscall.ENOMEM,
}

// Message fragments seen from codecs and external tools whose errors do not
// preserve the underlying errno.
var messages = []string{
	"too many open files",
	"file table overflow",
	"no space left on device",
	"cannot allocate memory",
	"out of memory",
}

// Is reports whether err represents resource exhaustion rather than bad
// input data. Pure predicate; nil is never transient.
func Is(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range errnos {
		if errors.Is(err, e) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
