package repository

import (
	"reflect"
	"testing"
)

func TestCandidateSetOrderAndOverride(t *testing.T) {
	s := NewCandidateSet()
	s.Add(&RawCommit{ID: "a", Message: "first"})
	s.Add(&RawCommit{ID: "b", Message: "second"})
	s.Add(&RawCommit{ID: "a", Message: "replaced"})

	if got := s.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("IDs = %v, want [a b]", got)
	}
	if got := s.Get("a").Message; got != "replaced" {
		t.Errorf("collision should keep the last value, got %q", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestCandidateSetMerge(t *testing.T) {
	a := NewCandidateSet()
	a.Add(&RawCommit{ID: "x", Message: "mine"})
	a.Add(&RawCommit{ID: "y"})

	b := NewCandidateSet()
	b.Add(&RawCommit{ID: "x", Message: "theirs"})
	b.Add(&RawCommit{ID: "z"})

	a.Merge(b)
	if got := a.IDs(); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("IDs after merge = %v", got)
	}
	if a.Get("x").Message != "theirs" {
		t.Error("merge should let the incoming entry win")
	}

	a.Merge(nil)
	if a.Len() != 3 {
		t.Error("merging nil should be a no-op")
	}
}

func TestRawCommitSubject(t *testing.T) {
	c := &RawCommit{Message: "Fix overflow in parser\n\nLonger body here."}
	if got := c.Subject(); got != "Fix overflow in parser" {
		t.Errorf("Subject = %q", got)
	}
	single := &RawCommit{Message: "One liner"}
	if got := single.Subject(); got != "One liner" {
		t.Errorf("Subject = %q", got)
	}
}
