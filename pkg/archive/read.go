package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/nary/pkg/errors"
)

// ReadFile returns the content of the regular file called name inside a
// tarball. name is matched after the "package/" prefix has been stripped,
// so ReadFile(data, "package.json") finds "package/package.json".
func ReadFile(tarball []byte, name string) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecompression, err, "open gzip stream")
	}
	defer gz.Close()

	want := path.Clean(name)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errors.New(errors.ErrCodeNotFound, "%s not found in archive", name)
		}
		if err == tar.ErrInsecurePath {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeArchiveFormat, err, "read archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if path.Clean(strings.TrimPrefix(hdr.Name, Prefix)) == want {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeDecompression, err, "read %s", name)
			}
			return data, nil
		}
	}
}
