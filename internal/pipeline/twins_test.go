package pipeline

import (
	"reflect"
	"testing"

	"prospector/internal/datamodel"
)

func TestLinkTwins(t *testing.T) {
	commits := []*datamodel.Commit{
		{CommitID: "aaa", Message: "Fix injection\n\nDetails.", Tags: []string{"v2.0"}},
		{CommitID: "bbb", Message: "Fix injection\n\nBackported.", Tags: []string{"v1.1"}},
		{CommitID: "ccc", Message: "Unrelated change"},
	}

	linkTwins(commits)

	if len(commits[0].Twins) != 1 || commits[0].Twins[0].CommitID != "bbb" {
		t.Fatalf("aaa twins = %v", commits[0].Twins)
	}
	if commits[0].Twins[0].Tag != "v1.1" {
		t.Errorf("twin tag = %q, want the twin's own tag v1.1", commits[0].Twins[0].Tag)
	}
	if len(commits[1].Twins) != 1 || commits[1].Twins[0].CommitID != "aaa" {
		t.Fatalf("bbb twins = %v", commits[1].Twins)
	}
	if len(commits[2].Twins) != 0 {
		t.Error("commit without a shared subject should have no twins")
	}
}

func TestLinkTwinsUntaggedTwin(t *testing.T) {
	commits := []*datamodel.Commit{
		{CommitID: "aaa", Message: "Fix overflow", Tags: []string{"v2.0"}},
		{CommitID: "bbb", Message: "Fix overflow"},
	}
	linkTwins(commits)
	if commits[0].Twins[0].Tag != datamodel.NoTag {
		t.Errorf("twin tag = %q, want the no-tag sentinel", commits[0].Twins[0].Tag)
	}
}

func TestLinkTwinsIdempotent(t *testing.T) {
	commits := []*datamodel.Commit{
		{CommitID: "aaa", Message: "Fix overflow"},
		{CommitID: "bbb", Message: "Fix overflow"},
	}
	linkTwins(commits)
	linkTwins(commits)
	if len(commits[0].Twins) != 1 {
		t.Errorf("twins = %v, want a single entry after repeated linking", commits[0].Twins)
	}
}

func TestTwinMatch(t *testing.T) {
	ranked := []*datamodel.Commit{
		{CommitID: "abc123def456abc123def456abc123def456abcd"},
	}

	tests := []struct {
		name string
		ids  []string
		want bool
	}{
		{name: "exact id", ids: []string{"abc123def456abc123def456abc123def456abcd"}, want: true},
		{name: "abbreviated prefix", ids: []string{"abc123de"}, want: true},
		{name: "prefix too short", ids: []string{"abc12"}, want: false},
		{name: "no overlap", ids: []string{"fff999"}, want: false},
		{name: "empty", ids: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := twinMatch(ranked, tt.ids); got != tt.want {
				t.Errorf("twinMatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeIDs(t *testing.T) {
	got := dedupeIDs([]string{"a", "b", "a", "c", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("dedupeIDs = %v", got)
	}
}
