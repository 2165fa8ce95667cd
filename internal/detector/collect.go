package detector

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/xmltable/internal/xmlstream"
)

// collect stores the field carried by ev into the current record. It reports
// false when the occurrence has no name or names an unknown column.
func (d *Detector) collect(ev xmlstream.Event) bool {
	name, ok := ev.Attr(d.cfg.NameAttr)
	if !ok || name == "" {
		return false
	}
	if d.cfg.Columns != nil && !d.cfg.Columns.Has(name) {
		return false
	}
	d.current[name] = NormalizeValue(ev.Text)
	return true
}

// NormalizeValue repairs invalid UTF-8 and applies NFC so that values
// decoded from different charsets compare equal.
func NormalizeValue(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "\uFFFD")
	return norm.NFC.String(s)
}
