// Package atomicfile commits output files through a same-directory temporary
// path plus rename, so no observer ever sees a partial or zero-byte file at
// the final path.
package atomicfile

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Commit invokes write with a unique temporary path next to dest, then
// renames it into place. On any failure the temporary file is removed
// (best-effort) and the error propagates; dest is never created or modified
// by a failed attempt.
func Commit(dest string, write func(tmp string) error) error {
	tmp := dest + ".tmp-" + uuid.NewString()[:8]
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "commit output")
	}
	return nil
}

// WriteFile is Commit specialized to a byte slice, used by the copy
// fallback stage.
func WriteFile(dest string, data []byte, perm os.FileMode) error {
	return Commit(dest, func(tmp string) error {
		return os.WriteFile(tmp, data, perm)
	})
}
