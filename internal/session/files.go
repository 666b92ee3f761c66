package session

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/terrorbyte/qcp/internal/protocol"
)

// rootedDir resolves a leaf filename against the server's fixed working
// directory (typically the SSH login directory), never letting a Command
// escape it.
type rootedDir struct {
	base string
}

func newRootedDir(base string) *rootedDir {
	if base == "" {
		base = "."
	}
	return &rootedDir{base: base}
}

func (r *rootedDir) resolve(filename string) (string, error) {
	if err := rejectLeafOnly(filename); err != nil {
		return "", err
	}
	return filepath.Join(r.base, filename), nil
}

// openForRead opens filename for a GET, translating OS errors into the
// Status taxonomy the Response carries.
func (r *rootedDir) openForRead(filename string) (*os.File, uint64, error) {
	path, err := r.resolve(filename)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, wrapOSError(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrapOSError(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, errStatus{protocol.Status_IS_A_DIRECTORY, filename + " is a directory"}
	}
	return f, uint64(info.Size()), nil
}

// createForWrite creates filename for a PUT with the requested
// permission bits, translating OS errors into the Status taxonomy.
func (r *rootedDir) createForWrite(filename string, perm os.FileMode) (*os.File, error) {
	path, err := r.resolve(filename)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(filepath.Dir(path)); statErr != nil || !info.IsDir() {
		return nil, errStatus{protocol.Status_DIRECTORY_DOES_NOT_EXIST, filepath.Dir(filename) + " does not exist"}
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, wrapOSError(err)
	}
	return f, nil
}

func wrapOSError(err error) error {
	var es errStatus
	if errors.As(err, &es) {
		return es
	}
	return statusFromOSError(err)
}
