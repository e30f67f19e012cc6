package diagnostics

import (
	"sort"
	"sync"

	"github.com/helmcode/pairprog-ai/pkg/model"
)

// Ticket identifies one dispatched request for a document.
type Ticket struct {
	URI string
	Seq uint64
}

type StoreOptions struct {
	// StrictOrder drops responses older than the latest request dispatched
	// for the same document. When false the last response to arrive wins.
	StrictOrder bool
	// OnChange is called with the number of tracked documents after
	// every mutation. It runs with the store lock released.
	OnChange func(documents int)
}

// Store is the per-document collection of displayed findings. Entries are
// only ever replaced wholesale, never merged.
type Store struct {
	mu        sync.Mutex
	opts      StoreOptions
	entries   map[string][]model.Finding
	issued    map[string]uint64
	clearedAt map[string]uint64
}

func NewStore(opts StoreOptions) *Store {
	return &Store{
		opts:      opts,
		entries:   make(map[string][]model.Finding),
		issued:    make(map[string]uint64),
		clearedAt: make(map[string]uint64),
	}
}

// Begin reserves the next request sequence number for uri.
func (s *Store) Begin(uri string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[uri]++
	return Ticket{URI: uri, Seq: s.issued[uri]}
}

// Replace swaps in findings for the ticket's document. It returns false, and
// leaves the entry untouched, when the ticket is stale: issued before the
// document was last cleared, or, with StrictOrder, superseded by a newer
// request.
func (s *Store) Replace(t Ticket, findings []model.Finding) bool {
	s.mu.Lock()
	if t.Seq <= s.clearedAt[t.URI] || (s.opts.StrictOrder && t.Seq != s.issued[t.URI]) {
		s.mu.Unlock()
		return false
	}
	s.put(t.URI, findings)
	n := len(s.entries)
	s.mu.Unlock()

	s.notify(n)
	return true
}

// Set replaces the findings for uri unconditionally.
func (s *Store) Set(uri string, findings []model.Finding) {
	s.mu.Lock()
	s.issued[uri]++
	s.put(uri, findings)
	n := len(s.entries)
	s.mu.Unlock()

	s.notify(n)
}

// Get returns a copy of the findings for uri.
func (s *Store) Get(uri string) ([]model.Finding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	findings, ok := s.entries[uri]
	if !ok {
		return nil, false
	}
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	return out, true
}

// Documents lists the tracked URIs, sorted.
func (s *Store) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]string, 0, len(s.entries))
	for uri := range s.entries {
		docs = append(docs, uri)
	}
	sort.Strings(docs)
	return docs
}

// Len returns the number of tracked documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes the findings for uri. Requests already in flight for it are
// invalidated.
func (s *Store) Clear(uri string) {
	s.mu.Lock()
	delete(s.entries, uri)
	s.clearedAt[uri] = s.issued[uri]
	n := len(s.entries)
	s.mu.Unlock()

	s.notify(n)
}

// ClearAll removes every finding. Used on teardown.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for uri, seq := range s.issued {
		s.clearedAt[uri] = seq
	}
	s.entries = make(map[string][]model.Finding)
	s.mu.Unlock()

	s.notify(0)
}

// put stores findings for uri. An empty replacement still tracks the
// document, with zero findings, until it is cleared. Callers hold s.mu.
func (s *Store) put(uri string, findings []model.Finding) {
	stored := make([]model.Finding, len(findings))
	copy(stored, findings)
	s.entries[uri] = stored
}

func (s *Store) notify(n int) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(n)
	}
}
