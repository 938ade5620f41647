// Package source reads family tree inputs line by line.
//
// Inputs may be plain text or gzip/xz compressed; the wrapper is detected from
// the leading bytes. Blank lines and lines starting with '#' are skipped but
// still counted, so labels always match the line number in the file.
package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/bcowgill/d3-family-tree/core/errors"
	"github.com/bcowgill/d3-family-tree/internal/validation"
)

// Injectable for testing.
var (
	gzipNewReader = gzip.NewReader
	xzNewReader   = xz.NewReader
	osReadFile    = os.ReadFile
	osStat        = os.Stat
)

// maxLineLength bounds a single record line.
const maxLineLength = 1 << 20

var commentLine = regexp.MustCompile(`^\s*#`)

// Line is one record line of an input.
type Line struct {
	Number int    // 1-based line number in the decompressed input
	Text   string // Raw line without the trailing newline
	Label  string // "name:number", used as the record source label
}

// Input is an input file held in memory exactly as read from disk.
type Input struct {
	Name        string
	Raw         []byte
	Compression validation.Compression
	MaxSize     int64 // Limit on the decompressed size, 0 for none
}

// ReadFile loads path, rejecting files larger than maxSize (0 disables the limit).
func ReadFile(path string, maxSize int64) (*Input, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	info, err := osStat(path)
	if err != nil {
		return nil, errors.NewIO("stat", path, err)
	}
	if err := validation.CheckSize(info.Size(), maxSize); err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	raw, err := osReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	in := FromBytes(path, raw)
	in.MaxSize = maxSize
	return in, nil
}

// FromBytes wraps data already in memory.
func FromBytes(name string, raw []byte) *Input {
	return &Input{
		Name:        name,
		Raw:         raw,
		Compression: validation.DetectCompression(raw),
	}
}

// Open returns a reader over the decompressed content.
func (in *Input) Open() (io.Reader, error) {
	var r io.Reader = bytes.NewReader(in.Raw)
	switch in.Compression {
	case validation.CompressionGzip:
		zr, err := gzipNewReader(r)
		if err != nil {
			return nil, errors.NewIO("decompress", in.Name, err)
		}
		r = zr
	case validation.CompressionXZ:
		xr, err := xzNewReader(r)
		if err != nil {
			return nil, errors.NewIO("decompress", in.Name, err)
		}
		r = xr
	}
	if in.MaxSize > 0 {
		r = &limitedReader{r: io.LimitReader(r, in.MaxSize+1), limit: in.MaxSize}
	}
	return r, nil
}

// Lines calls fn for every record line in order. It stops at the first error
// returned by fn, a read failure or cancellation of ctx.
func (in *Input) Lines(ctx context.Context, fn func(Line) error) error {
	r, err := in.Open()
	if err != nil {
		return err
	}
	if err := Scan(ctx, r, in.Name, fn); err != nil {
		var ioErr *errors.IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = in.Name
		}
		return err
	}
	return nil
}

// Scan splits r into record lines labelled "name:number".
func Scan(ctx context.Context, r io.Reader, name string, fn func(Line) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if n == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" || commentLine.MatchString(text) {
			continue
		}
		if err := fn(Line{Number: n, Text: text, Label: label(name, n)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.NewIO("scan", "", err)
	}
	return nil
}

func label(name string, n int) string {
	if name == "" {
		return fmt.Sprintf("line %d", n)
	}
	return fmt.Sprintf("%s:%d", name, n)
}

// limitedReader fails once more than limit bytes have been read.
type limitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, validation.CheckSize(l.read, l.limit)
	}
	return n, err
}
