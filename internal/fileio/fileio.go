// Package fileio reads and writes the files the converter works on.
package fileio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/greatbody/bomswap/internal/errors"
	"github.com/greatbody/bomswap/internal/logging"
	"go.uber.org/zap"
)

// TerminatorSize is the zero padding kept after the content of a RawBuffer,
// wide enough for a UTF-16 terminator.
const TerminatorSize = 2

// RawBuffer holds the bytes read from a file. It is never modified after
// ReadBoundedBytes returns.
type RawBuffer struct {
	buf       []byte // content followed by TerminatorSize zero bytes
	n         int
	truncated bool
}

// Bytes returns the content, without the padding.
func (r *RawBuffer) Bytes() []byte {
	return r.buf[:r.n]
}

// Len returns the number of bytes read.
func (r *RawBuffer) Len() int {
	return r.n
}

// Terminated returns the content followed by the zero padding.
func (r *RawBuffer) Terminated() []byte {
	return r.buf
}

// Truncated reports whether the file held more than the requested bytes.
func (r *RawBuffer) Truncated() bool {
	return r.truncated
}

// ReadBoundedBytes reads at most maxLength bytes from the start of path.
func ReadBoundedBytes(path string, maxLength int) (*RawBuffer, error) {
	if maxLength <= 0 {
		return nil, errors.New(errors.KindIO).
			Op("ReadFile").
			Path(path).
			Detail("read limit must be positive, got %d", maxLength).
			Build()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IO("CreateFile", path, err)
	}
	defer f.Close()

	buf := make([]byte, maxLength+TerminatorSize)
	n, err := io.ReadFull(f, buf[:maxLength])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.IO("ReadFile", path, err)
	}

	truncated := false
	if n == maxLength {
		var probe [1]byte
		k, err := f.Read(probe[:])
		if err != nil && err != io.EOF {
			return nil, errors.IO("ReadFile", path, err)
		}
		truncated = k > 0
	}

	logging.Logger().Debug("ReadFile",
		zap.String("path", path),
		zap.Int("bytes", n),
		zap.Bool("truncated", truncated))

	return &RawBuffer{buf: buf[:n+TerminatorSize], n: n, truncated: truncated}, nil
}

// WriteBytes replaces path with data. The data goes to a temporary file in
// the same directory first, so path is either fully written or untouched.
func WriteBytes(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.IO("CreateFile", path, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.IO("WriteFile", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return errors.IO("FlushFileBuffers", path, err)
	}
	if err = tmp.Close(); err != nil {
		return errors.IO("CloseHandle", path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return errors.IO("SetFileAttributes", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return errors.IO("MoveFile", path, err)
	}

	logging.Logger().Debug("WriteFile", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
