package ingest

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/ulikunitz/xz"
)

// compressionExts maps a trailing extension to its decompressor.
var compressionExts = map[string]func(io.Reader) (io.Reader, error){
	".gz": func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	".bz2": func(r io.Reader) (io.Reader, error) {
		return bzip2.NewReader(r), nil
	},
	".xz": func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) },
	".br": func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
}

// Discover walks root and returns all files whose logical extension matches
// ext (".html" or ".xml"), including compressed variants. The result is
// sorted for stable job ordering.
func Discover(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(LogicalName(path)), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering %s files under %s: %w", ext, root, err)
	}
	sort.Strings(files)
	return files, nil
}

// LogicalName strips a recognized compression suffix from a path's
// basename. The logical name is the video's natural key.
func LogicalName(path string) string {
	base := filepath.Base(path)
	if _, ok := compressionExts[strings.ToLower(filepath.Ext(base))]; ok {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// Open opens a source file, transparently decompressing it when the
// extension calls for it.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	newReader, ok := compressionExts[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return f, nil
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return &decompressedFile{Reader: r, file: f}, nil
}

// decompressedFile closes the underlying file when the reader is closed.
type decompressedFile struct {
	io.Reader
	file *os.File
}

func (d *decompressedFile) Close() error {
	if c, ok := d.Reader.(io.Closer); ok {
		c.Close()
	}
	return d.file.Close()
}
