package convert

import (
	"github.com/starford/xmltable/internal/table"
)

// Options configures a Converter.
type Options struct {
	// Suffix filters candidate input files.
	Suffix string
	// InputEncoding forces the input charset; empty honours each document's declaration.
	InputEncoding string
	// RecordTag is the local name of the element carrying one field.
	RecordTag string
	// NameAttr is the attribute holding the field name.
	NameAttr string
	// RecordLimit caps record-tag matches per file; <= 0 means unlimited.
	RecordLimit int
	// BufferSize is the unflushed-record count above which an interim
	// snapshot is written. The count is checked after each file is
	// committed, so a snapshot may hold up to one file's records more
	// than BufferSize.
	BufferSize int
	// NoHeader drops the first completed record of the run (the export's
	// own header row).
	NoHeader bool
	// DedupPrefix selects the fields that form the dedup key.
	DedupPrefix string
}

func (o *Options) applyDefaults() {
	if o.Suffix == "" {
		o.Suffix = ".xml"
	}
	if o.RecordTag == "" {
		o.RecordTag = "Data"
	}
	if o.NameAttr == "" {
		o.NameAttr = "name"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.DedupPrefix == "" {
		o.DedupPrefix = table.DefaultDedupPrefix
	}
}

// Option is a functional option for a Converter.
type Option func(*Converter)

// WithRecorder persists run and file reports.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) {
		c.recorder = r
	}
}

// WithObserver subscribes o to progress notifications.
func WithObserver(o Observer) Option {
	return func(c *Converter) {
		c.observers = append(c.observers, o)
	}
}
