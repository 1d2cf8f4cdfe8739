package output

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// WriteError reports an output file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("Write file %s failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Bytes extracts a byte payload from a response value.
func Bytes(data any) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("response holds %T, want bytes", data)
	}
}

// WriteRaw writes data unchanged to path, or to w when path is empty.
// The file is created with mode 0600 and closed on every path.
func WriteRaw(w io.Writer, path string, data []byte) (err error) {
	if path == "" {
		_, err = w.Write(data)
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	if _, err := f.Write(data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// WriteHex writes data as lowercase hex followed by a newline.
func WriteHex(w io.Writer, data []byte) error {
	_, err := fmt.Fprintln(w, hex.EncodeToString(data))
	return err
}

// WriteBool writes "true" or "false" followed by a newline.
func WriteBool(w io.Writer, v bool) error {
	_, err := fmt.Fprintln(w, formatCell(v))
	return err
}

// WriteLine writes msg followed by a newline.
func WriteLine(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, msg)
	return err
}
