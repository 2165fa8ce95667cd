package mcpserver

import (
	"fmt"
	"strings"
)

const inputFormatTemplate = `# xmltable Input Format

xmltable turns a directory tree of spreadsheet-style XML exports into one CSV
table. No schema is needed; records are found from the document shape.

## Files

- Every regular file under the input root whose name ends with ` + "`%[1]s`" + ` is read,
  in lexical path order, including sub-directories.
- A file that is not well-formed XML is skipped as a whole and reported as
  ` + "`failed`" + ` in the run's file list.

## Fields

Each field is one ` + "`<%[2]s %[3]s=\"column\">value</%[2]s>`" + ` element (namespace
prefixes are ignored, so ` + "`<ss:%[2]s ss:%[3]s=\"...\">`" + ` works too).

- The ` + "`%[3]s`" + ` attribute selects the column. Unknown columns are ignored.
- The element text is the value; an element without text yields an empty value.
- Values are stored as Unicode NFC; invalid byte sequences become U+FFFD.

## Records

The depth at which one record ends is learned from the first two field elements
of each file. A record is closed whenever the document climbs above that depth,
so a typical Workbook > Table > Row > Cell > Data export yields one record per Row.
A file with a single field element produces a single record.

## Deduplication

After all files are read, records whose ` + "`%[4]s*`" + ` fields are identical (compared in
column order) are collapsed; the first occurrence is kept.

## Columns

%[5]s
`

// InputFormatContract describes the accepted input for the given detection
// settings and column set.
func InputFormatContract(suffix, recordTag, nameAttr, dedupPrefix string, columns []string) string {
	var b strings.Builder
	for _, c := range columns {
		fmt.Fprintf(&b, "- `%s`\n", c)
	}
	return fmt.Sprintf(inputFormatTemplate, suffix, recordTag, nameAttr, dedupPrefix, strings.TrimRight(b.String(), "\n"))
}
