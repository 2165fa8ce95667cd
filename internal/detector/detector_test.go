package detector

import (
	"io"
	"strings"
	"testing"

	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/xmlstream"
)

type run struct {
	closed  []models.Record
	pending models.Record
	stopped bool
	det     *Detector
}

// feed streams doc through a fresh Detector the same way the converter does.
func feed(t *testing.T, doc string, cfg Config) run {
	t.Helper()
	if cfg.Tag == "" {
		cfg.Tag = "Data"
	}
	r, err := xmlstream.NewReader(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	d := New(cfg)
	var out run
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		step := d.Feed(ev)
		if step.Closed != nil {
			out.closed = append(out.closed, step.Closed)
		}
		if step.Stop {
			out.stopped = true
			break
		}
	}
	out.pending = d.Pending()
	out.det = d
	return out
}

const workbook = `<?xml version="1.0"?>
<ss:Workbook xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <ss:Table>
  <ss:Row>
   <ss:Cell><ss:Data name="A">h1</ss:Data></ss:Cell>
   <ss:Cell><ss:Data name="B">h2</ss:Data></ss:Cell>
  </ss:Row>
  <ss:Row>
   <ss:Cell><ss:Data name="A">1</ss:Data></ss:Cell>
   <ss:Cell><ss:Data name="B">2</ss:Data></ss:Cell>
  </ss:Row>
  <ss:Row>
   <ss:Cell><ss:Data name="A">3</ss:Data></ss:Cell>
   <ss:Cell><ss:Data name="B"/></ss:Cell>
  </ss:Row>
 </ss:Table>
</ss:Workbook>`

func TestFeed_WorkbookRows(t *testing.T) {
	got := feed(t, workbook, Config{})
	if len(got.closed) != 3 {
		t.Fatalf("closed = %d records, want 3: %v", len(got.closed), got.closed)
	}
	if got.closed[0]["A"] != "h1" || got.closed[0]["B"] != "h2" {
		t.Errorf("row 0 = %v", got.closed[0])
	}
	if got.closed[1]["A"] != "1" || got.closed[1]["B"] != "2" {
		t.Errorf("row 1 = %v", got.closed[1])
	}
	v, ok := got.closed[2]["B"]
	if !ok || v != "" {
		t.Errorf("empty element should yield present empty value, got %q present=%v", v, ok)
	}
	if got.pending != nil {
		t.Errorf("pending = %v, want nil", got.pending)
	}
	if got.det.State() != RowDepthLocked || got.det.RowDepth() != 3 {
		t.Errorf("state = %s row depth = %d", got.det.State(), got.det.RowDepth())
	}
}

func TestFeed_TwoOccurrencesYieldOneRecord(t *testing.T) {
	doc := `<T><R><Data name="A">x</Data><Data name="B">y</Data></R></T>`
	got := feed(t, doc, Config{})
	if len(got.closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(got.closed))
	}
	if got.pending != nil {
		t.Errorf("pending = %v, want nil", got.pending)
	}
}

func TestFeed_LimitLeavesTrailingPartial(t *testing.T) {
	doc := `<T>
 <R><Data name="A">a</Data><Data name="B">1</Data></R>
 <R><Data name="A">b</Data><Data name="B">2</Data></R>
 <R><Data name="A">c</Data><Data name="B">3</Data></R>
</T>`
	got := feed(t, doc, Config{Limit: 5})
	if !got.stopped {
		t.Fatal("expected early stop")
	}
	if len(got.closed) != 2 {
		t.Fatalf("closed = %d, want 2", len(got.closed))
	}
	if got.closed[0]["A"] != "a" || got.closed[1]["A"] != "b" {
		t.Errorf("closed = %v", got.closed)
	}
	if got.pending == nil || got.pending["A"] != "c" || len(got.pending) != 1 {
		t.Errorf("pending = %v, want {A:c}", got.pending)
	}
	if got.det.Matches() != 6 {
		t.Errorf("matches = %d, want limit+1 = 6", got.det.Matches())
	}
}

func TestFeed_LimitNeverExceedsLPlusOne(t *testing.T) {
	var b strings.Builder
	b.WriteString("<T>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<R><Data name="A">v</Data><Data name="B">w</Data></R>`)
	}
	b.WriteString("</T>")
	for _, limit := range []int{1, 2, 7, 30} {
		got := feed(t, b.String(), Config{Limit: limit})
		if got.det.Matches() > limit+1 {
			t.Errorf("limit %d: matches = %d", limit, got.det.Matches())
		}
	}
}

func TestFeed_TagNeverFound(t *testing.T) {
	got := feed(t, `<a><b name="A">x</b></a>`, Config{})
	if len(got.closed) != 0 || got.pending != nil {
		t.Errorf("expected nothing, got closed=%v pending=%v", got.closed, got.pending)
	}
	if got.det.State() != Idle {
		t.Errorf("state = %s, want idle", got.det.State())
	}
}

func TestFeed_SingleOccurrenceNeverLocks(t *testing.T) {
	got := feed(t, `<a><b><Data name="A">x</Data></b></a>`, Config{})
	if len(got.closed) != 0 {
		t.Errorf("closed = %v, want none", got.closed)
	}
	if got.pending["A"] != "x" {
		t.Errorf("pending = %v", got.pending)
	}
	if got.det.State() != RowDepthUnknown || got.det.RowDepth() != -1 {
		t.Errorf("state = %s row depth = %d", got.det.State(), got.det.RowDepth())
	}
}

func TestFeed_UnknownColumnsIgnored(t *testing.T) {
	cols, _ := models.NewColumns("A")
	doc := `<T><R><Data name="A">x</Data><Data name="Z">y</Data><Data>z</Data></R></T>`
	got := feed(t, doc, Config{Columns: cols})
	if len(got.closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(got.closed))
	}
	if _, ok := got.closed[0]["Z"]; ok {
		t.Errorf("unknown column collected: %v", got.closed[0])
	}
	if got.det.Ignored() != 2 {
		t.Errorf("ignored = %d, want 2", got.det.Ignored())
	}
}

func TestFeed_CustomNameAttr(t *testing.T) {
	doc := `<T><R><Data key="A">x</Data><Data key="B">y</Data></R></T>`
	got := feed(t, doc, Config{NameAttr: "key"})
	if len(got.closed) != 1 || got.closed[0]["B"] != "y" {
		t.Errorf("closed = %v", got.closed)
	}
}

func TestNormalizeValue(t *testing.T) {
	if got := NormalizeValue("cafe\u0301"); got != "café" {
		t.Errorf("NFC not applied: %q", got)
	}
	if got := NormalizeValue("a\xffb"); got != "a\uFFFDb" {
		t.Errorf("invalid UTF-8 not repaired: %q", got)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || RowDepthLocked.String() != "row-depth-locked" {
		t.Error("unexpected state names")
	}
}
