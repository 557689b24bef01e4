package archive

import (
	"archive/tar"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/nary/pkg/errors"
)

// File is one entry for [Build].
type File struct {
	Name string // Path inside the archive, slash separated
	Body []byte
	Mode int64 // defaults to 0o644
	Dir  bool
}

// Build writes files, in order and with their names untouched, into a
// gzip-compressed tarball. Timestamps are zeroed so equal input yields equal
// bytes.
func Build(files []File) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: f.Mode, Size: int64(len(f.Body)), Typeflag: tar.TypeReg, Format: tar.FormatPAX}
		if f.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
			if f.Dir {
				hdr.Mode = 0o755
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, errors.Wrap(errors.ErrCodeArchiveFormat, err, "write header for %s", f.Name)
		}
		if !f.Dir {
			if _, err := tw.Write(f.Body); err != nil {
				return nil, errors.Wrap(errors.ErrCodeArchiveFormat, err, "write %s", f.Name)
			}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveFormat, err, "finish tar stream")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecompression, err, "finish gzip stream")
	}
	return buf.Bytes(), nil
}

// Pack archives the regular files below dir under the "package/" prefix,
// the layout registries serve. node_modules and .git are left out.
func Pack(dir string) ([]byte, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (d.Name() == "node_modules" || d.Name() == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Name: Prefix + filepath.ToSlash(rel), Body: body, Mode: int64(info.Mode().Perm())})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveFormat, err, "pack %s", dir)
	}
	return Build(files)
}
