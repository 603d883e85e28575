package harvest

import (
	"path/filepath"
	"testing"

	"github.com/harvestrt/harvestrt/store"
)

func openTestLedger(t *testing.T, retention int) *Ledger {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewLedger(s, retention)
}

func TestLedgerAppendAndRecent(t *testing.T) {
	l := openTestLedger(t, 10)

	for i := int64(1); i <= 3; i++ {
		r := Record{StartedAt: i * 1000, FinishedAt: i*1000 + 500, Success: true, Hash: "h"}
		if err := l.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records, want 2", len(recent))
	}
	if recent[0].StartedAt != 3000 || recent[1].StartedAt != 2000 {
		t.Fatalf("Recent(2) = %+v, want newest-first [3000, 2000]", recent)
	}
}

func TestLedgerPrunesBeyondRetention(t *testing.T) {
	l := openTestLedger(t, 2)

	for i := int64(1); i <= 5; i++ {
		if err := l.Append(Record{StartedAt: i * 1000}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := l.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ledger retained %d records, want 2 (retention bound)", len(all))
	}
	if all[0].StartedAt != 5000 || all[1].StartedAt != 4000 {
		t.Fatalf("retained records = %+v, want the 2 newest", all)
	}
}
