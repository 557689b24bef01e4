package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// tempPath returns a unique sibling of path for staging a write.
func tempPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp-"+uuid.NewString())
}

// writeTemp writes data to a fresh temp file next to path and returns its name.
func writeTemp(path string, data []byte) (string, error) {
	tmp := tempPath(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// commitOnce publishes tmp at path unless path already exists.
//
// A hard link is used so that the check and the publish are one atomic
// step; on filesystems without hard links it falls back to rename after an
// existence check. It reports whether this call created path. tmp is always
// removed.
func commitOnce(tmp, path string) (bool, error) {
	defer os.Remove(tmp)

	err := os.Link(tmp, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return false, nil
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, err
	}
	return true, nil
}

// replace atomically writes data at path, overwriting any previous file.
func replace(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
