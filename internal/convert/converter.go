// Package convert drives a full conversion: walk the input tree, detect
// records in each file, accumulate them, deduplicate and write the CSV.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/xmltable/internal/apperr"
	"github.com/starford/xmltable/internal/checksum"
	"github.com/starford/xmltable/internal/csvout"
	"github.com/starford/xmltable/internal/detector"
	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/storage"
	"github.com/starford/xmltable/internal/table"
	"github.com/starford/xmltable/internal/xmlstream"
)

// Converter converts an input tree into one CSV file. A Converter owns its
// output path; running two against the same path corrupts the output.
type Converter struct {
	src     storage.Provider
	out     *csvout.Writer
	columns *models.Columns
	opts    Options
	logger  *slog.Logger

	recorder  Recorder
	observers []Observer
}

// New creates a Converter. An output that cannot be written fails here,
// before any input is read; an existing output file is left untouched.
func New(src storage.Provider, out *csvout.Writer, columns *models.Columns, opts Options, logger *slog.Logger, options ...Option) (*Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	c := &Converter{
		src:     src,
		out:     out,
		columns: columns,
		opts:    opts,
		logger:  logger,
	}
	for _, o := range options {
		o(c)
	}

	if err := out.CheckWritable(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrOutputUnwritable, err)
	}
	return c, nil
}

// Columns returns the output column set.
func (c *Converter) Columns() *models.Columns { return c.columns }

// OutputPath returns the absolute CSV path.
func (c *Converter) OutputPath() string { return c.out.Path() }

// Convert runs one conversion and returns its report. Unreadable or
// unparsable files are skipped with a warning; an unreadable input root or a
// failed output write aborts the run. ctx is checked between files.
func (c *Converter) Convert(ctx context.Context) (*Report, error) {
	rep := &Report{
		ID:        uuid.NewString(),
		Output:    c.out.Path(),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	c.recordRun(*rep)
	for _, o := range c.observers {
		o.RunStarted(*rep)
	}

	err := c.convert(ctx, rep)

	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		rep.Status = StatusFailed
		rep.Error = err.Error()
	} else {
		rep.Status = StatusOK
	}
	c.recordRun(*rep)
	for _, o := range c.observers {
		o.RunDone(*rep)
	}
	return rep, err
}

func (c *Converter) convert(ctx context.Context, rep *Report) error {
	files, err := c.src.List(c.opts.Suffix)
	if err != nil {
		return fmt.Errorf("convert: list input: %w", err)
	}
	c.logger.Info("convert: starting",
		slog.String("run_id", rep.ID),
		slog.String("root", c.src.Root()),
		slog.Int("files", len(files)))

	tb := table.New(c.columns)
	skipHeader := c.opts.NoHeader

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.logger.Info("convert: processing file",
			slog.String("path", f.Path),
			slog.Int("file_no", i+1),
			slog.Int("records_so_far", tb.Len()))

		records, fr := c.parseFile(f)
		fr.RunID = rep.ID
		rep.Files++
		rep.Matches += fr.Matches

		if fr.Status == StatusFailed {
			rep.Skipped++
			c.logger.Warn("convert: skipping file",
				slog.String("path", f.Path),
				slog.String("error", fr.Error))
			c.fileDone(fr)
			continue
		}

		for _, r := range records {
			if skipHeader {
				skipHeader = false
				c.logger.Debug("convert: dropped header record", slog.String("path", f.Path))
				continue
			}
			tb.Append(r)
			fr.Records++
		}
		c.fileDone(fr)

		if tb.Unflushed() > c.opts.BufferSize {
			if err := c.out.Flush(tb); err != nil {
				return err
			}
			c.logger.Debug("convert: interim flush", slog.Int("records", tb.Len()))
		}
	}

	rep.Dropped = tb.Dedup(c.opts.DedupPrefix, c.logger)
	rep.Records = tb.Len()

	if err := c.out.Flush(tb); err != nil {
		return err
	}
	c.logger.Info("convert: finished",
		slog.String("run_id", rep.ID),
		slog.Int("files", rep.Files),
		slog.Int("skipped", rep.Skipped),
		slog.Int("records", rep.Records),
		slog.Int("dropped", rep.Dropped),
		slog.String("output", c.out.Path()))
	return nil
}

// parseFile streams one file through a fresh detector. On any read or parse
// error the file's records are discarded so it contributes nothing.
func (c *Converter) parseFile(f models.FileMetadata) (records []models.Record, fr FileReport) {
	start := time.Now()
	fr = FileReport{Path: f.Path, Status: StatusOK}
	fail := func(err error) ([]models.Record, FileReport) {
		fr.Status = StatusFailed
		fr.Error = err.Error()
		fr.Duration = time.Since(start)
		return nil, fr
	}
	if f.Err != "" {
		return fail(errors.New(f.Err))
	}

	rc, err := c.src.Open(f.Path)
	if err != nil {
		return fail(err)
	}
	defer rc.Close()

	// The checksum covers the whole file even when parsing stops early.
	h := checksum.New()
	body := io.TeeReader(rc, h)
	defer func() {
		if fr.Status != StatusFailed {
			if _, err := io.Copy(io.Discard, body); err == nil {
				fr.Checksum = checksum.Hex(h)
			}
		}
	}()

	rd, err := xmlstream.NewReader(body, c.opts.InputEncoding)
	if err != nil {
		return fail(err)
	}
	det := detector.New(detector.Config{
		Tag:      c.opts.RecordTag,
		NameAttr: c.opts.NameAttr,
		Limit:    c.opts.RecordLimit,
		Columns:  c.columns,
	})

	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fr.Matches = det.Matches()
			return fail(err)
		}
		step := det.Feed(ev)
		if step.Closed != nil {
			records = append(records, step.Closed)
		}
		if step.Stop {
			fr.Status = StatusLimited
			c.logger.Info("convert: record limit reached",
				slog.String("path", f.Path),
				slog.Int("limit", c.opts.RecordLimit))
			break
		}
	}
	if p := det.Pending(); p != nil {
		records = append(records, p)
	}
	if det.State() == detector.Idle {
		c.logger.Debug("convert: record tag not found", slog.String("path", f.Path), slog.String("tag", c.opts.RecordTag))
	}
	if n := det.Ignored(); n > 0 {
		c.logger.Debug("convert: ignored fields", slog.String("path", f.Path), slog.Int("count", n))
	}

	fr.Matches = det.Matches()
	fr.Duration = time.Since(start)
	return records, fr
}

func (c *Converter) recordRun(r Report) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(r); err != nil {
		c.logger.Warn("convert: record run failed", slog.String("run_id", r.ID), slog.String("error", err.Error()))
	}
}

func (c *Converter) fileDone(fr FileReport) {
	if c.recorder != nil {
		if err := c.recorder.RecordFile(fr); err != nil {
			c.logger.Warn("convert: record file failed", slog.String("path", fr.Path), slog.String("error", err.Error()))
		}
	}
	for _, o := range c.observers {
		o.FileDone(fr)
	}
}
