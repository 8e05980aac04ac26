// Package memory is a tiered in-process context store. Agents read it
// through the narrow Lookup interface; it never influences scheduling.
package memory

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tier names a memory partition.
type Tier string

const (
	TierWorking   Tier = "working"
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
	TierEpisodic  Tier = "episodic"
	TierSemantic  Tier = "semantic"
)

// retrievalOrder is the order tiers are searched when no tier is given,
// most volatile first.
var retrievalOrder = []Tier{TierWorking, TierShortTerm, TierEpisodic, TierSemantic, TierLongTerm}

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	for _, known := range retrievalOrder {
		if t == known {
			return true
		}
	}
	return false
}

// Entry is a stored piece of context with access bookkeeping.
type Entry struct {
	ID           string
	Tier         Tier
	Content      string
	Metadata     map[string]string
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int
}

// Lookup is the read-only view handed to agents.
type Lookup interface {
	Retrieve(id string, tier Tier) (Entry, bool)
	Search(query string, tier Tier, limit int) []Entry
}

// Store holds entries per tier.
type Store struct {
	mu      sync.Mutex
	tiers   map[Tier]map[string]*Entry
	order   []string
	maxAge  time.Duration
	nowFunc func() time.Time
}

var _ Lookup = (*Store)(nil)

// New creates a store. Entries in the working tier older than maxAge are
// moved to short_term by Consolidate; zero disables that.
func New(maxAge time.Duration) *Store {
	s := &Store{
		tiers:   make(map[Tier]map[string]*Entry),
		maxAge:  maxAge,
		nowFunc: time.Now,
	}
	for _, t := range retrievalOrder {
		s.tiers[t] = make(map[string]*Entry)
	}
	return s
}

// Put stores content and returns the entry id. Unknown tiers fall back to
// short_term.
func (s *Store) Put(content string, tier Tier, metadata map[string]string) string {
	if !tier.Valid() {
		log.Printf("[memory] unknown tier %q, using %s", tier, TierShortTerm)
		tier = TierShortTerm
	}

	now := s.nowFunc()
	e := &Entry{
		ID:           uuid.New().String(),
		Tier:         tier,
		Content:      content,
		Metadata:     copyMeta(metadata),
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier][e.ID] = e
	s.order = append(s.order, e.ID)
	return e.ID
}

// Retrieve returns an entry by id. An empty tier searches every tier.
func (s *Store) Retrieve(id string, tier Tier) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers := retrievalOrder
	if tier != "" {
		tiers = []Tier{tier}
	}
	for _, t := range tiers {
		if e, ok := s.tiers[t][id]; ok {
			s.touch(e)
			return snapshot(e), true
		}
	}
	return Entry{}, false
}

// Search returns up to limit entries whose content or metadata values
// contain query (case-insensitive), newest first. An empty query matches
// everything; an empty tier searches every tier.
func (s *Store) Search(query string, tier Tier, limit int) []Entry {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.find(s.order[i])
		if e == nil || (tier != "" && e.Tier != tier) {
			continue
		}
		if q != "" && !matches(e, q) {
			continue
		}
		s.touch(e)
		out = append(out, snapshot(e))
	}
	return out
}

// Consolidate moves stale working entries to short_term and reports how
// many moved.
func (s *Store) Consolidate() map[string]int {
	stats := map[string]int{"working_to_short_term": 0}
	if s.maxAge <= 0 {
		return stats
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.nowFunc().Add(-s.maxAge)
	ids := make([]string, 0, len(s.tiers[TierWorking]))
	for id := range s.tiers[TierWorking] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := s.tiers[TierWorking][id]
		if e.LastAccessed.Before(cutoff) {
			delete(s.tiers[TierWorking], id)
			e.Tier = TierShortTerm
			s.tiers[TierShortTerm][id] = e
			stats["working_to_short_term"]++
		}
	}
	return stats
}

// Len returns the number of entries in a tier, or in all tiers when empty.
func (s *Store) Len(tier Tier) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tier != "" {
		return len(s.tiers[tier])
	}
	n := 0
	for _, entries := range s.tiers {
		n += len(entries)
	}
	return n
}

func (s *Store) find(id string) *Entry {
	for _, t := range retrievalOrder {
		if e, ok := s.tiers[t][id]; ok {
			return e
		}
	}
	return nil
}

func (s *Store) touch(e *Entry) {
	e.LastAccessed = s.nowFunc()
	e.AccessCount++
}

func matches(e *Entry, q string) bool {
	if strings.Contains(strings.ToLower(e.Content), q) {
		return true
	}
	for _, v := range e.Metadata {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func snapshot(e *Entry) Entry {
	c := *e
	c.Metadata = copyMeta(e.Metadata)
	return c
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String renders an entry for prompts and logs.
func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s", e.Tier, e.Content)
}
