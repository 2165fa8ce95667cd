// Package charset resolves character encodings by their WHATWG/IANA labels.
package charset

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Lookup returns the encoding registered under label ("utf-8", "latin1",
// "windows-1252", "shift_jis", ...).
func Lookup(label string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(label))
	if err != nil {
		return nil, fmt.Errorf("charset: unsupported encoding %q: %w", label, err)
	}
	return enc, nil
}

// IsUTF8 reports whether label names UTF-8 (or is empty, which means UTF-8).
func IsUTF8(label string) bool {
	if strings.TrimSpace(label) == "" {
		return true
	}
	enc, err := Lookup(label)
	if err != nil {
		return false
	}
	name, err := htmlindex.Name(enc)
	return err == nil && name == "utf-8"
}

// NewReader decodes r from label into UTF-8.
func NewReader(r io.Reader, label string) (io.Reader, error) {
	if IsUTF8(label) {
		return r, nil
	}
	enc, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// Encode converts UTF-8 data into label. Runes the target charset cannot
// represent are replaced with the charset's substitute character.
func Encode(data []byte, label string) ([]byte, error) {
	if IsUTF8(label) {
		return data, nil
	}
	enc, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.Bytes(encoding.ReplaceUnsupported(enc.NewEncoder()), data)
	if err != nil {
		return nil, fmt.Errorf("charset: encode %s: %w", label, err)
	}
	return out, nil
}
