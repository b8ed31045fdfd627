package filtering

import (
	"strings"
	"testing"

	"prospector/internal/repository"
)

func TestFilterCommits(t *testing.T) {
	tests := []struct {
		name   string
		commit *repository.RawCommit
		kept   bool
	}{
		{
			name:   "plausible fix",
			commit: &repository.RawCommit{ID: "a", Message: "Fix injection in parser", ChangedFiles: []string{"parser.go"}},
			kept:   true,
		},
		{
			name:   "empty message",
			commit: &repository.RawCommit{ID: "b", Message: "   \n  "},
			kept:   false,
		},
		{
			name:   "changelog paste",
			commit: &repository.RawCommit{ID: "c", Message: strings.Repeat("x", 5001)},
			kept:   false,
		},
		{
			name: "bulk change",
			commit: &repository.RawCommit{
				ID:           "d",
				Message:      "Regenerate",
				ChangedFiles: make([]string, 101),
			},
			kept: false,
		},
		{
			name:   "merge commit",
			commit: &repository.RawCommit{ID: "e", Message: "Merge pull request #42 from fork/main"},
			kept:   false,
		},
		{
			name:   "revert commit",
			commit: &repository.RawCommit{ID: "f", Message: "Revert \"Fix injection\""},
			kept:   false,
		},
		{
			name:   "release plumbing",
			commit: &repository.RawCommit{ID: "g", Message: "[maven-release-plugin] prepare release v2.0"},
			kept:   false,
		},
		{
			name:   "merge mentioned mid-subject survives",
			commit: &repository.RawCommit{ID: "h", Message: "Fix merge conflict handling"},
			kept:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := repository.NewCandidateSet()
			set.Add(tt.commit)
			kept, rejected := FilterCommits(set)
			if got := kept.Has(tt.commit.ID); got != tt.kept {
				t.Errorf("kept = %v, want %v", got, tt.kept)
			}
			wantRejected := 0
			if !tt.kept {
				wantRejected = 1
			}
			if rejected != wantRejected {
				t.Errorf("rejected = %d, want %d", rejected, wantRejected)
			}
		})
	}
}

func TestFilterCommitsPreservesOrder(t *testing.T) {
	set := repository.NewCandidateSet()
	set.Add(&repository.RawCommit{ID: "one", Message: "First fix"})
	set.Add(&repository.RawCommit{ID: "drop", Message: ""})
	set.Add(&repository.RawCommit{ID: "two", Message: "Second fix"})

	kept, rejected := FilterCommits(set)
	if rejected != 1 {
		t.Fatalf("rejected = %d, want 1", rejected)
	}
	ids := kept.IDs()
	if len(ids) != 2 || ids[0] != "one" || ids[1] != "two" {
		t.Errorf("IDs = %v, want [one two]", ids)
	}
}
