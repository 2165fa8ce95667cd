// Package xmlstream turns an XML document into a flat sequence of
// element Enter/Exit events with namespace prefixes stripped.
package xmlstream

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/transform"

	"github.com/starford/xmltable/internal/charset"
)

// Kind distinguishes element entry from element exit.
type Kind int

const (
	Enter Kind = iota + 1
	Exit
)

func (k Kind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is one element boundary.
//
// Text is only populated on Exit and holds the character data that appears
// before the element's first child.
type Event struct {
	Kind  Kind
	Local string
	Attrs map[string]string
	Text  string
}

// Attr returns the attribute with the given local name, if present.
func (e Event) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

type frame struct {
	local    string
	attrs    map[string]string
	text     strings.Builder
	sawChild bool
}

// Reader yields Events from an XML document.
type Reader struct {
	dec   *xml.Decoder
	stack []*frame
}

// NewReader creates a Reader over r. When encoding names a charset other
// than UTF-8 the raw bytes are transcoded before parsing and the document's
// own declaration is ignored; otherwise a declared charset is honoured.
func NewReader(r io.Reader, encoding string) (*Reader, error) {
	transcoded := !charset.IsUTF8(encoding)
	if transcoded {
		var err error
		if r, err = charset.NewReader(r, encoding); err != nil {
			return nil, err
		}
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if transcoded {
			return input, nil
		}
		enc, err := charset.Lookup(label)
		if err != nil {
			return nil, err
		}
		return transform.NewReader(input, enc.NewDecoder()), nil
	}
	return &Reader{dec: dec}, nil
}

// Depth returns the number of currently open elements.
func (r *Reader) Depth() int { return len(r.stack) }

// Next returns the next Enter or Exit event. It returns io.EOF at the end of
// a well-formed document and a wrapped decode error otherwise.
func (r *Reader) Next() (Event, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			if len(r.stack) > 0 {
				return Event{}, fmt.Errorf("xmlstream: unexpected EOF inside <%s>", r.stack[len(r.stack)-1].local)
			}
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, fmt.Errorf("xmlstream: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if n := len(r.stack); n > 0 {
				r.stack[n-1].sawChild = true
			}
			f := &frame{local: LocalName(t.Name.Local), attrs: attrMap(t.Attr)}
			r.stack = append(r.stack, f)
			return Event{Kind: Enter, Local: f.local, Attrs: f.attrs}, nil

		case xml.CharData:
			if n := len(r.stack); n > 0 && !r.stack[n-1].sawChild {
				r.stack[n-1].text.Write(t)
			}

		case xml.EndElement:
			n := len(r.stack)
			f := r.stack[n-1]
			r.stack = r.stack[:n-1]
			return Event{Kind: Exit, Local: f.local, Attrs: f.attrs, Text: f.text.String()}, nil
		}
	}
}

// LocalName strips a namespace prefix of the form "prefix:" or "{uri}".
func LocalName(name string) string {
	i := strings.LastIndexAny(name, "}:")
	if i > 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		m[LocalName(a.Name.Local)] = a.Value
	}
	return m
}
