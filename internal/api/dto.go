package api

import (
	"github.com/starford/xmltable/internal/convert"
	"github.com/starford/xmltable/internal/runservice"
)

// Run is a conversion run summary (aliased from the domain layer).
type Run = convert.Report

// RunFile is one file's contribution to a run (aliased from the domain layer).
type RunFile = convert.FileReport

// Output is a read of the CSV file (aliased from the domain layer).
type Output = runservice.Output

// RunListResponse wraps run listings.
type RunListResponse struct {
	Runs  []Run `json:"runs" validate:"required"`
	Total int   `json:"total" example:"3" validate:"required"`
}

// RunFilesResponse wraps the files of a run.
type RunFilesResponse struct {
	RunID string    `json:"run_id" example:"0b6f3c1e-..." validate:"required"`
	Files []RunFile `json:"files" validate:"required"`
}

// ColumnsResponse lists the output columns in order.
type ColumnsResponse struct {
	Columns []string `json:"columns" example:"Language,URL,SamS.ArchivedURL" validate:"required"`
}
