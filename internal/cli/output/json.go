package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter writes data as one indented JSON document. Names such as
// "a<b" are written as-is rather than HTML-escaped.
type JSONFormatter struct{}

// Format encodes data. Byte slices become base64 strings.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
