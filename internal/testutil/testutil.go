// Package testutil provides shared test helpers for building input trees
// and run manifests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/xmltable/internal/convert"
	"github.com/starford/xmltable/internal/csvout"
	"github.com/starford/xmltable/internal/manifest"
	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/storage"
)

// Cell is one field of a spreadsheet row.
type Cell struct {
	Name  string
	Value string
}

// Workbook renders rows as a namespaced spreadsheet export with one
// Row/Cell/Data element per cell.
func Workbook(rows ...[]Cell) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<ss:Workbook xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">` + "\n")
	b.WriteString(" <ss:Table>\n")
	for _, row := range rows {
		b.WriteString("  <ss:Row>\n")
		for _, c := range row {
			fmt.Fprintf(&b, "   <ss:Cell><ss:Data ss:Type=\"String\" name=%q>%s</ss:Data></ss:Cell>\n", c.Name, escape(c.Value))
		}
		b.WriteString("  </ss:Row>\n")
	}
	b.WriteString(" </ss:Table>\n</ss:Workbook>\n")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// InputTree creates a temporary input directory holding files and returns
// it with a storage.Provider rooted there.
func InputTree(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestManifest creates a temporary SQLite manifest that is automatically cleaned up.
func TestManifest(t *testing.T) *manifest.DB {
	t.Helper()
	db, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Quiet is a logger that discards everything.
var Quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// Converter builds a converter over files writing to a temporary out.csv
// with the given columns. It returns the converter and the output path.
func Converter(t *testing.T, files map[string]string, columns []string, options ...convert.Option) (*convert.Converter, string) {
	t.Helper()
	_, store := InputTree(t, files)
	cols, err := models.NewColumns(columns...)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "out.csv")
	w, err := csvout.NewWriter(out, csvout.Options{Delimiter: ','})
	if err != nil {
		t.Fatal(err)
	}
	c, err := convert.New(store, w, cols, convert.Options{}, Quiet, options...)
	if err != nil {
		t.Fatal(err)
	}
	return c, out
}
