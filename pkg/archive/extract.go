// Package archive unpacks and builds the gzip-compressed tarballs that
// registries distribute.
//
// Archives are untrusted input. [Extractor.Extract] refuses any entry whose
// path is absolute or climbs out of the destination, and aborts the whole
// archive when it meets one: entries before the offending one stay on
// disk, nothing after it is written.
package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/nary/pkg/errors"
)

// Prefix is the wrapper directory registries put around package contents.
const Prefix = "package/"

// Extractor unpacks tarballs.
type Extractor struct {
	Logger *log.Logger
}

// Extract unpacks tarball into dest with a default Extractor.
func Extract(tarball []byte, dest string) error {
	return (&Extractor{}).Extract(tarball, dest)
}

// Extract decompresses tarball and writes its entries under dest in archive
// order. A leading "package/" segment is stripped from each entry path.
//
// Errors: DECOMPRESSION when the gzip stream is invalid, ARCHIVE_FORMAT
// when the tar stream cannot be read, PATH_TRAVERSAL for an absolute or
// escaping entry. An entry that cannot be written is logged and skipped.
// Symbolic and hard links are skipped as well.
func (x *Extractor) Extract(tarball []byte, dest string) error {
	logger := x.Logger
	if logger == nil {
		logger = log.Default()
	}

	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDecompression, err, "open gzip stream")
	}
	defer gz.Close()

	src := &trackingReader{r: gz}
	tr := tar.NewReader(src)
	for n := 0; ; n++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			if n == 0 && src.err == nil && src.read == 0 {
				return errors.New(errors.ErrCodeArchiveFormat, "archive is empty")
			}
			// The gzip trailer is only verified once the stream is read to its end.
			if _, err := io.Copy(io.Discard, gz); err != nil {
				return errors.Wrap(errors.ErrCodeDecompression, err, "verify gzip stream after %d entries", n)
			}
			return nil
		}
		if err == tar.ErrInsecurePath && hdr != nil {
			return &errors.PathTraversalError{EntryPath: hdr.Name}
		}
		if err != nil {
			return streamError(src, err, n)
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				logger.Warn("skipping archive entry", "entry", hdr.Name, "err", err)
			}
		case tar.TypeReg:
			werr := writeEntry(target, tr, hdr.FileInfo().Mode().Perm())
			if src.err != nil {
				return streamError(src, src.err, n)
			}
			if werr != nil {
				logger.Warn("skipping archive entry", "entry", hdr.Name, "err", werr)
			}
		default:
			logger.Debug("ignoring archive entry", "entry", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

// entryPath validates an entry name and returns it relative to the
// destination, or "" for the root itself.
func entryPath(name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", &errors.PathTraversalError{EntryPath: name}
	}
	rel := strings.TrimPrefix(name, Prefix)
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &errors.PathTraversalError{EntryPath: name}
	}
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func streamError(src *trackingReader, err error, entries int) error {
	if src.err != nil && src.err != io.EOF {
		return errors.Wrap(errors.ErrCodeDecompression, src.err, "decompress archive after %d entries", entries)
	}
	return errors.Wrap(errors.ErrCodeArchiveFormat, err, "read archive entry %d", entries+1)
}

// trackingReader records the first error of the decompressor so that
// stream failures can be told apart from tar format failures.
type trackingReader struct {
	r    io.Reader
	read int64
	err  error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.read += int64(n)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
