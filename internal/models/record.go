// Package models defines the domain types for xmltable.
package models

import (
	"fmt"
	"time"
)

// Record is one output row: field name to value.
type Record map[string]string

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns is the immutable, ordered column set of the output table.
// It plays the role of the template record: every record key must be one
// of its names, and its order is the CSV column order.
type Columns struct {
	names []string
	index map[string]int
}

// NewColumns builds a column set. Duplicate names keep their first position.
func NewColumns(names ...string) (*Columns, error) {
	c := &Columns{index: make(map[string]int, len(names))}
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("models: empty column name")
		}
		if _, dup := c.index[n]; dup {
			continue
		}
		c.index[n] = len(c.names)
		c.names = append(c.names, n)
	}
	if len(c.names) == 0 {
		return nil, fmt.Errorf("models: at least one column is required")
	}
	return c, nil
}

// Has reports whether name is a known column.
func (c *Columns) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of columns.
func (c *Columns) Len() int { return len(c.names) }

// Names returns a copy of the column names in output order.
func (c *Columns) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Row renders r in column order. Missing keys render empty and keys outside
// the column set are ignored.
func (c *Columns) Row(r Record) []string {
	row := make([]string, len(c.names))
	for i, n := range c.names {
		row[i] = r[n]
	}
	return row
}

// DefaultColumns is the column set of the SamS archive exports.
var DefaultColumns = []string{
	"Language",
	"Encoding",
	"URL",
	"Source",
	"SourceFile",
	"FileFormat",
	"NumPages",
	"SamS.ArchivedURL",
	"SamS.Classification",
	"SamS.Creator",
	"SamS.Creator^Office",
	"SamS.DateCreated",
	"SamS.DateCreated^Circa",
	"SamS.DatePublished",
	"SamS.Description",
	"SamS.Distribution",
	"SamS.Genre",
	"SamS.Publication Link",
	"SamS.Publisher",
	"SamS.Redactions",
	"SamS.Relation",
	"SamS.Reporter",
	"SamS.Subject",
	"SamS.Surveillance Program",
	"SamS.Target",
	"SamS.Title",
	"Identifier",
	"ex.File.FileName",
}

// FileMetadata describes one candidate input file. Err is set when the
// entry (or the directory it names) could not be read while listing.
type FileMetadata struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
	Err       string    `json:"error,omitempty"`
}
