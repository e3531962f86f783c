package filesystem

import (
	"os"
	"path/filepath"
)

const (
	defaultDirMode  = 0755
	defaultFileMode = 0644
)

// Facade gives access to files below a base directory. The base directory
// itself is created on the first write.
type Facade interface {
	Path(name string) string
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	Remove(name string) error
}

type defaultFilesystem string

func NewDefaultFilesystem(basedir string) (Facade, error) {
	absdir, err := filepath.Abs(basedir)
	if err != nil {
		return nil, err
	}
	return defaultFilesystem(absdir), nil
}

func (fs defaultFilesystem) Path(subpath string) string {
	return filepath.Join(string(fs), subpath)
}

// WriteFile replaces the content of the named file atomically: readers see
// either the old or the new content, never a partial write
func (fs defaultFilesystem) WriteFile(name string, data []byte) (err error) {
	target := fs.Path(name)
	dir := filepath.Dir(target)
	if err = os.MkdirAll(dir, defaultDirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), defaultFileMode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (fs defaultFilesystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(fs.Path(name))
}

// Remove deletes the named file, a missing file is not an error
func (fs defaultFilesystem) Remove(name string) error {
	err := os.Remove(fs.Path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
