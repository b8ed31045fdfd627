package repository

import "strings"

// RawCommit is a commit as it comes out of git, before feature
// extraction. Diff and Tags are filled on demand; listing them for every
// candidate up front is what the preprocessing cache exists to avoid.
type RawCommit struct {
	ID           string
	Repository   string
	Timestamp    int64
	Message      string
	ChangedFiles []string
	Diff         []string
	Tags         []string
}

// Subject returns the first line of the commit message.
func (c *RawCommit) Subject() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// CandidateSet is an id-keyed set of raw commits. Insertion order is
// preserved so batching against the store is deterministic; it carries
// no other meaning.
type CandidateSet struct {
	order []string
	items map[string]*RawCommit
}

// NewCandidateSet creates an empty candidate set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{items: make(map[string]*RawCommit)}
}

// Add inserts a commit. On id collision the value is replaced and the
// original position kept (last write wins).
func (s *CandidateSet) Add(c *RawCommit) {
	if _, ok := s.items[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.items[c.ID] = c
}

// Get returns the commit for id, or nil.
func (s *CandidateSet) Get(id string) *RawCommit {
	return s.items[id]
}

// Has reports whether id is in the set.
func (s *CandidateSet) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of commits.
func (s *CandidateSet) Len() int {
	return len(s.order)
}

// IDs returns commit ids in insertion order.
func (s *CandidateSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Commits returns commits in insertion order.
func (s *CandidateSet) Commits() []*RawCommit {
	out := make([]*RawCommit, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Merge folds other into s. Entries from other override on id collision,
// keeping the position of the first insertion.
func (s *CandidateSet) Merge(other *CandidateSet) {
	if other == nil {
		return
	}
	for _, c := range other.Commits() {
		s.Add(c)
	}
}
