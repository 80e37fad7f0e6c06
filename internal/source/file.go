package source

import (
	"FlowSleuth/internal/model"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// FileSource reads JSON flow records from a file, decompressing gzip
// content transparently.
type FileSource struct {
	*JSONReader
	path    string
	closers []io.Closer
}

// Open opens path as a record source. "-" reads standard input.
func Open(path string) (*FileSource, error) {
	var (
		r       io.Reader
		closers []io.Closer
	)
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open flow file '%s': %w", path, err)
		}
		r = f
		closers = append(closers, f)
	}

	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to read gzip header of '%s': %w", path, err)
		}
		closers = append([]io.Closer{zr}, closers...)
		r = zr
	} else {
		r = br
	}

	return &FileSource{JSONReader: NewJSONReader(r), path: path, closers: closers}, nil
}

// Next returns the next record, annotating decode errors with the file name.
func (f *FileSource) Next() (model.Record, error) {
	rec, err := f.JSONReader.Next()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return rec, err
}

// Close closes the decompressor and the underlying file.
func (f *FileSource) Close() error {
	return closeAll(f.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
