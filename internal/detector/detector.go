// Package detector finds record boundaries in a schema-less XML event
// stream and collects one field per occurrence of the record tag.
//
// The row-closing depth is not known in advance. It is inferred from the
// lowest depth the stream climbs to between the first and the second
// occurrence of the record tag; after that, every exit that climbs above
// that depth closes the record in progress. This holds for uniformly
// structured exports (Workbook/Table/Row/Cell/Data) and misfires on
// irregular documents.
package detector

import (
	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/xmlstream"
)

// State is the detector's belief about the row depth.
type State int

const (
	// Idle: the record tag has not been seen yet.
	Idle State = iota
	// RowDepthUnknown: seen once, tracking the minimum depth until the second occurrence.
	RowDepthUnknown
	// RowDepthLocked: row depth is fixed for the rest of the file.
	RowDepthLocked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RowDepthUnknown:
		return "row-depth-unknown"
	case RowDepthLocked:
		return "row-depth-locked"
	default:
		return "invalid"
	}
}

// Config parameterises a Detector.
type Config struct {
	// Tag is the local name of the element carrying one field.
	Tag string
	// NameAttr is the attribute holding the field name.
	NameAttr string
	// Limit stops the file after Limit matches; <= 0 means unlimited.
	Limit int
	// Columns restricts which field names are collected.
	Columns *models.Columns
}

// Step is the outcome of feeding one event.
type Step struct {
	// Closed is the record completed by this event, or nil.
	Closed models.Record
	// Stop is set when the record limit was exceeded.
	Stop bool
}

// Detector holds the per-file boundary detection state. It is not safe for
// concurrent use; create one per file.
type Detector struct {
	cfg Config

	state    State
	depth    int
	minDepth int
	rowDepth int
	matches  int
	ignored  int
	current  models.Record
}

// New creates a Detector in the Idle state.
func New(cfg Config) *Detector {
	if cfg.NameAttr == "" {
		cfg.NameAttr = "name"
	}
	return &Detector{
		cfg:      cfg,
		rowDepth: -1,
		current:  models.Record{},
	}
}

// State returns the current state.
func (d *Detector) State() State { return d.state }

// RowDepth returns the locked row depth, or -1.
func (d *Detector) RowDepth() int { return d.rowDepth }

// Depth returns the current nesting depth.
func (d *Detector) Depth() int { return d.depth }

// Matches returns how many record-tag occurrences were processed, including
// the one that exceeded the limit.
func (d *Detector) Matches() int { return d.matches }

// Ignored returns how many occurrences had no name or an unknown column.
func (d *Detector) Ignored() int { return d.ignored }

// Feed advances the state machine by one event.
func (d *Detector) Feed(ev xmlstream.Event) Step {
	if ev.Kind == xmlstream.Enter {
		d.depth++
		return Step{}
	}

	d.depth--
	if d.depth < d.minDepth {
		d.minDepth = d.depth
	}

	var step Step
	if d.state == RowDepthLocked && d.depth < d.rowDepth && len(d.current) > 0 {
		step.Closed = d.current
		d.current = models.Record{}
	}

	if ev.Local != d.cfg.Tag {
		return step
	}

	switch d.state {
	case Idle:
		d.minDepth = d.depth
		d.state = RowDepthUnknown
	case RowDepthUnknown:
		d.rowDepth = d.minDepth
		d.state = RowDepthLocked
	}

	d.matches++
	if d.cfg.Limit > 0 && d.matches > d.cfg.Limit {
		step.Stop = true
		return step
	}

	if !d.collect(ev) {
		d.ignored++
	}
	return step
}

// Pending returns the record in progress, or nil when it is empty. At end of
// file (or after Stop) this is the trailing partial record.
func (d *Detector) Pending() models.Record {
	if len(d.current) == 0 {
		return nil
	}
	return d.current
}
