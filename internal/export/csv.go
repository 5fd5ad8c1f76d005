package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Separator is the fixed field separator for all exported files. Kept as a
// single byte so exported files are readable regardless of the locale's
// decimal separator settings.
const Separator = ";"

// SerializationError wraps an I/O failure while exporting a channel file.
// The caller's buffers are untouched, so the export can be retried.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// WriteRows writes one header-free data row per record to path, fields
// joined by Separator, lines terminated by \n. The file appears under its
// final name only after every row has been written and flushed: rows go to
// a temporary sibling first, which is renamed over path on success. A
// failure never leaves a truncated file under the final name.
func WriteRows(path string, rows [][]string) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}

	w := bufio.NewWriterSize(f, 256*1024)
	for _, row := range rows {
		if _, err := w.WriteString(strings.Join(row, Separator)); err != nil {
			return abort(f, tmp, path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return abort(f, tmp, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return abort(f, tmp, path, err)
	}
	if err := f.Sync(); err != nil {
		return abort(f, tmp, path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &SerializationError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &SerializationError{Path: path, Err: err}
	}
	return nil
}

func abort(f *os.File, tmp, path string, err error) error {
	_ = f.Close()
	_ = os.Remove(tmp)
	return &SerializationError{Path: path, Err: err}
}
