package archive

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/nary/pkg/errors"
)

func build(t *testing.T, files ...File) []byte {
	t.Helper()
	data, err := Build(files)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return data
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestExtractStripsPackagePrefix(t *testing.T) {
	dest := t.TempDir()
	data := build(t,
		File{Name: "package/", Dir: true},
		File{Name: "package/package.json", Body: []byte(`{"name":"x","version":"1.0.0"}`)},
		File{Name: "package/lib/x.js", Body: []byte("module.exports = 1")},
		File{Name: "other/readme.md", Body: []byte("kept as is")},
		File{Name: "package/package/inner.txt", Body: []byte("stripped once")},
	)

	if err := Extract(data, dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "lib", "x.js")); got != "module.exports = 1" {
		t.Errorf("lib/x.js = %q", got)
	}
	if !exists(filepath.Join(dest, "package.json")) {
		t.Error("package.json missing")
	}
	if !exists(filepath.Join(dest, "other", "readme.md")) {
		t.Error("entries without the prefix should keep their path")
	}
	if !exists(filepath.Join(dest, "package", "inner.txt")) {
		t.Error("prefix should be stripped only once")
	}
}

func TestExtractAbsolutePathAborts(t *testing.T) {
	dest := t.TempDir()
	data := build(t,
		File{Name: "package/first.txt", Body: []byte("1")},
		File{Name: "/etc/passwd", Body: []byte("root::0:0")},
		File{Name: "package/after.txt", Body: []byte("2")},
	)

	err := Extract(data, dest)
	var pte *errors.PathTraversalError
	if !stderrors.As(err, &pte) {
		t.Fatalf("Extract() error = %v, want PathTraversalError", err)
	}
	if pte.EntryPath != "/etc/passwd" {
		t.Errorf("EntryPath = %q", pte.EntryPath)
	}
	if !exists(filepath.Join(dest, "first.txt")) {
		t.Error("entries before the violation stay written")
	}
	if exists(filepath.Join(dest, "after.txt")) {
		t.Error("no entry after the violation may be written")
	}
	if exists(filepath.Join(dest, "etc", "passwd")) {
		t.Error("offending entry must not be written")
	}
}

func TestExtractEscapingPaths(t *testing.T) {
	tests := []string{
		"../evil.txt",
		"package/../../evil.txt",
		"package/lib/../../../evil.txt",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			dest := filepath.Join(root, "node_modules", "x")
			err := Extract(build(t, File{Name: name, Body: []byte("x")}), dest)
			if !errors.Is(err, errors.ErrCodePathTraversal) {
				t.Fatalf("Extract() error = %v, want PATH_TRAVERSAL", err)
			}
			if exists(filepath.Join(root, "node_modules", "evil.txt")) || exists(filepath.Join(root, "evil.txt")) {
				t.Error("escaping entry was written")
			}
		})
	}
}

func TestExtractInnerDotDotStaysInside(t *testing.T) {
	dest := t.TempDir()
	if err := Extract(build(t, File{Name: "package/a/../b.txt", Body: []byte("ok")}), dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !exists(filepath.Join(dest, "b.txt")) {
		t.Error("b.txt missing")
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want errors.Code
	}{
		{"not gzip", []byte("plain text"), errors.ErrCodeDecompression},
		{"empty input", nil, errors.ErrCodeDecompression},
		{"gzip of garbage", gzipBytes(t, []byte("this is not a tar archive at all, just text that goes on")), errors.ErrCodeArchiveFormat},
		{"gzip of nothing", gzipBytes(t, nil), errors.ErrCodeArchiveFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Extract(tt.data, t.TempDir())
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestExtractTruncatedGzip(t *testing.T) {
	data := build(t, File{Name: "package/big.txt", Body: make([]byte, 64<<10)})
	err := Extract(data[:len(data)/2], t.TempDir())
	if err == nil {
		t.Fatal("Extract() should fail on a truncated stream")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeDecompression && code != errors.ErrCodeArchiveFormat {
		t.Errorf("Extract() code = %s", code)
	}
}

func TestExtractVerifiesGzipTrailer(t *testing.T) {
	data := build(t, File{Name: "package/index.js", Body: []byte("module.exports = {}\n")})
	data[len(data)-8] ^= 0xff // first byte of the CRC-32

	err := Extract(data, t.TempDir())
	if !errors.Is(err, errors.ErrCodeDecompression) {
		t.Errorf("Extract() error = %v, want DECOMPRESSION", err)
	}
}

func TestExtractSkipsUnwritableEntry(t *testing.T) {
	dest := t.TempDir()
	// A file where a directory is needed makes the nested entry unwritable.
	data := build(t,
		File{Name: "package/lib", Body: []byte("file, not dir")},
		File{Name: "package/lib/x.js", Body: []byte("x")},
		File{Name: "package/ok.txt", Body: []byte("ok")},
	)
	if err := Extract(data, dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !exists(filepath.Join(dest, "ok.txt")) {
		t.Error("later entries should still be written")
	}
}

func TestPackRoundTrip(t *testing.T) {
	src := t.TempDir()
	_ = os.WriteFile(filepath.Join(src, "package.json"), []byte(`{"name":"p","version":"1.0.0"}`), 0o644)
	_ = os.MkdirAll(filepath.Join(src, "lib"), 0o755)
	_ = os.WriteFile(filepath.Join(src, "lib", "index.js"), []byte("index"), 0o644)
	_ = os.MkdirAll(filepath.Join(src, "node_modules", "dep"), 0o755)
	_ = os.WriteFile(filepath.Join(src, "node_modules", "dep", "x.js"), []byte("x"), 0o644)

	data, err := Pack(src)
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	dest := t.TempDir()
	if err := Extract(data, dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "lib", "index.js")); got != "index" {
		t.Errorf("lib/index.js = %q", got)
	}
	if exists(filepath.Join(dest, "node_modules")) {
		t.Error("node_modules should not be packed")
	}

	again, _ := Pack(src)
	if string(again) != string(data) {
		t.Error("Pack() should be deterministic")
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytesBuffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.b
}

type bytesBuffer struct{ b []byte }

func (w *bytesBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func TestReadFile(t *testing.T) {
	data := build(t,
		File{Name: "package/lib/x.js", Body: []byte("x")},
		File{Name: "package/package.json", Body: []byte(`{"name":"x"}`)},
	)

	got, err := ReadFile(data, "package.json")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != `{"name":"x"}` {
		t.Errorf("ReadFile() = %q", got)
	}
	if _, err := ReadFile(data, "missing.txt"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("ReadFile(missing) error = %v, want NOT_FOUND", err)
	}
}
