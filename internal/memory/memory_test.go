package memory

import (
	"testing"
	"time"
)

func TestPutAndRetrieve(t *testing.T) {
	s := New(0)
	id := s.Put("schema uses uuid keys", TierSemantic, map[string]string{"plan_id": "p1"})

	e, ok := s.Retrieve(id, "")
	if !ok {
		t.Fatal("entry not found across tiers")
	}
	if e.Tier != TierSemantic || e.Content != "schema uses uuid keys" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", e.AccessCount)
	}

	if _, ok := s.Retrieve(id, TierWorking); ok {
		t.Error("entry should not be found in the wrong tier")
	}
	if _, ok := s.Retrieve("missing", ""); ok {
		t.Error("missing id should not be found")
	}
}

func TestPutUnknownTierFallsBack(t *testing.T) {
	s := New(0)
	id := s.Put("x", Tier("scratch"), nil)
	if _, ok := s.Retrieve(id, TierShortTerm); !ok {
		t.Error("unknown tier should store in short_term")
	}
}

func TestSearch(t *testing.T) {
	s := New(0)
	s.Put("first result", TierShortTerm, nil)
	s.Put("unrelated", TierShortTerm, map[string]string{"task": "Billing"})
	s.Put("second RESULT", TierWorking, nil)

	got := s.Search("result", "", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Content != "second RESULT" {
		t.Errorf("newest entry should come first, got %q", got[0].Content)
	}

	if got := s.Search("billing", "", 10); len(got) != 1 {
		t.Errorf("metadata should be searchable, got %d matches", len(got))
	}
	if got := s.Search("", TierShortTerm, 1); len(got) != 1 {
		t.Errorf("limit not applied, got %d", len(got))
	}
}

func TestConsolidate(t *testing.T) {
	s := New(time.Minute)
	now := time.Now()
	s.nowFunc = func() time.Time { return now }
	old := s.Put("old", TierWorking, nil)
	s.Put("fresh", TierWorking, nil)

	// Age the first entry past the cutoff.
	s.tiers[TierWorking][old].LastAccessed = now.Add(-2 * time.Minute)

	stats := s.Consolidate()
	if stats["working_to_short_term"] != 1 {
		t.Errorf("moved = %d, want 1", stats["working_to_short_term"])
	}
	if s.Len(TierWorking) != 1 || s.Len(TierShortTerm) != 1 {
		t.Errorf("working=%d short_term=%d", s.Len(TierWorking), s.Len(TierShortTerm))
	}
	if s.Len("") != 2 {
		t.Errorf("total = %d, want 2", s.Len(""))
	}
}
