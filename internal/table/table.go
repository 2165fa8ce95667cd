// Package table holds the in-memory record table that backs the CSV output.
package table

import (
	"github.com/starford/xmltable/internal/models"
)

// Table is an ordered sequence of records over a fixed column set.
//
// The whole table stays in memory for the duration of a conversion: the
// final deduplication pass and every snapshot flush need all of it.
type Table struct {
	columns *models.Columns
	records []models.Record
	flushed int
}

// New creates an empty table over columns.
func New(columns *models.Columns) *Table {
	return &Table{columns: columns}
}

// Columns returns the table's column set.
func (t *Table) Columns() *models.Columns { return t.columns }

// Append adds r to the end of the table. Keys outside the column set are
// dropped so that every stored record satisfies the schema.
func (t *Table) Append(r models.Record) {
	rec := make(models.Record, len(r))
	for k, v := range r {
		if t.columns.Has(k) {
			rec[k] = v
		}
	}
	t.records = append(t.records, rec)
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Records returns the records in order. The slice must not be modified.
func (t *Table) Records() []models.Record { return t.records }

// Unflushed returns how many records were appended since the last flush.
func (t *Table) Unflushed() int { return len(t.records) - t.flushed }

// MarkFlushed records that the current contents have been written out.
func (t *Table) MarkFlushed() { t.flushed = len(t.records) }
