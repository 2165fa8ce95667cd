// Package csvout serializes a record table to a CSV file.
package csvout

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"github.com/starford/xmltable/internal/charset"
	"github.com/starford/xmltable/internal/storage"
	"github.com/starford/xmltable/internal/table"
)

// Options controls CSV rendering.
type Options struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// NoHeader omits the column-name row.
	NoHeader bool
	// Encoding is the output charset label. Empty means UTF-8.
	Encoding string
}

// Writer writes whole-table snapshots to a single output path.
//
// Every Flush re-serializes the entire table and atomically replaces the
// output file, so after a crash the file holds the last complete snapshot.
type Writer struct {
	path string
	opts Options
}

// NewWriter creates a Writer for path.
func NewWriter(path string, opts Options) (*Writer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("csvout: resolve output: %w", err)
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if _, err := charset.Lookup(orUTF8(opts.Encoding)); err != nil {
		return nil, fmt.Errorf("csvout: %w", err)
	}
	return &Writer{path: abs, opts: opts}, nil
}

// Path returns the absolute output path.
func (w *Writer) Path() string { return w.path }

// CheckWritable fails when the output cannot be replaced. The current
// output file, if any, is not modified.
func (w *Writer) CheckWritable() error {
	if err := storage.CheckWritable(w.path); err != nil {
		return fmt.Errorf("csvout: %w", err)
	}
	return nil
}

// Flush writes the full contents of t to the output path and marks t flushed.
func (w *Writer) Flush(t *table.Table) error {
	var buf bytes.Buffer
	if err := Render(&buf, t, w.opts); err != nil {
		return err
	}
	data, err := charset.Encode(buf.Bytes(), w.opts.Encoding)
	if err != nil {
		return fmt.Errorf("csvout: %w", err)
	}
	if err := storage.WriteAtomic(w.path, data); err != nil {
		return fmt.Errorf("csvout: flush %s: %w", w.path, err)
	}
	t.MarkFlushed()
	return nil
}

// Render writes t as CSV to dst in UTF-8.
func Render(dst io.Writer, t *table.Table, opts Options) error {
	cw := csv.NewWriter(dst)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	cols := t.Columns()
	if !opts.NoHeader {
		if err := cw.Write(cols.Names()); err != nil {
			return fmt.Errorf("csvout: write header: %w", err)
		}
	}
	for _, r := range t.Records() {
		if err := cw.Write(cols.Row(r)); err != nil {
			return fmt.Errorf("csvout: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csvout: %w", err)
	}
	return nil
}

func orUTF8(label string) string {
	if label == "" {
		return "utf-8"
	}
	return label
}
