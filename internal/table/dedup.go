package table

import (
	"log/slog"
	"strings"

	"github.com/starford/xmltable/internal/checksum"
	"github.com/starford/xmltable/internal/models"
)

// DefaultDedupPrefix marks the fields that identify an archived item.
const DefaultDedupPrefix = "SamS."

// DedupKey concatenates, in column order, the values of every field of r
// whose name starts with prefix.
func DedupKey(columns *models.Columns, r models.Record, prefix string) string {
	var b strings.Builder
	for _, name := range columns.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		b.WriteString(r[name])
	}
	return b.String()
}

// Dedup drops every record whose dedup key equals that of an earlier
// record. Surviving records keep their order. It returns the number of
// records dropped. Keys are compared by SHA-256 digest.
func (t *Table) Dedup(prefix string, logger *slog.Logger) int {
	seen := make(map[string]struct{}, len(t.records))
	kept := t.records[:0]
	dropped := 0
	for _, r := range t.records {
		digest := checksum.SumString(DedupKey(t.columns, r, prefix))
		if _, dup := seen[digest]; dup {
			dropped++
			if logger != nil {
				logger.Debug("dedup: dropped repeated record", slog.String("key_digest", digest[:12]))
			}
			continue
		}
		seen[digest] = struct{}{}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(t.records); i++ {
		t.records[i] = nil
	}
	t.records = kept
	if t.flushed > len(t.records) {
		t.flushed = len(t.records)
	}
	if logger != nil {
		logger.Info("dedup: finished",
			slog.Int("records", len(t.records)+dropped),
			slog.Int("unique", len(t.records)),
			slog.Int("dropped", dropped))
	}
	return dropped
}
