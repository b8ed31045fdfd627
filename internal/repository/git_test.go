package repository

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"prospector/internal/logging"
)

func testGit() *Git {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
	return NewGit("https://example.com/org/project.git", "/tmp/git_cache", Options{}, logger)
}

func TestParseCommitRecords(t *testing.T) {
	output := strings.Join([]string{
		recordSep + "abc123" + fieldSep + "1600000000" + fieldSep + "Fix injection\n\nDetails." + fieldSep + "\nsrc/a.go\nsrc/b.go\n",
		recordSep + "def456" + fieldSep + "1600000100" + fieldSep + "Tidy" + fieldSep + "\n",
	}, "")

	set := testGit().parseCommitRecords(output)

	if set.Len() != 2 {
		t.Fatalf("parsed %d commits, want 2", set.Len())
	}
	c := set.Get("abc123")
	if c == nil {
		t.Fatal("abc123 missing")
	}
	if c.Timestamp != 1600000000 {
		t.Errorf("Timestamp = %d", c.Timestamp)
	}
	if c.Subject() != "Fix injection" {
		t.Errorf("Subject = %q", c.Subject())
	}
	if !reflect.DeepEqual(c.ChangedFiles, []string{"src/a.go", "src/b.go"}) {
		t.Errorf("ChangedFiles = %v", c.ChangedFiles)
	}
	if c.Repository != "https://example.com/org/project.git" {
		t.Errorf("Repository = %q", c.Repository)
	}

	d := set.Get("def456")
	if d == nil || len(d.ChangedFiles) != 0 {
		t.Errorf("def456 = %+v, want no changed files", d)
	}
}

func TestParseCommitRecordsMalformed(t *testing.T) {
	output := strings.Join([]string{
		recordSep + "broken-no-separators",
		recordSep + "abc123" + fieldSep + "not-a-timestamp" + fieldSep + "msg" + fieldSep,
		recordSep + "good99" + fieldSep + "42" + fieldSep + "Fine" + fieldSep,
	}, "")

	set := testGit().parseCommitRecords(output)
	if set.Len() != 1 || !set.Has("good99") {
		t.Errorf("IDs = %v, want only the well-formed record", set.IDs())
	}
}

func TestParseCommitRecordsEmpty(t *testing.T) {
	if got := testGit().parseCommitRecords("").Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestRevisionRange(t *testing.T) {
	tests := []struct {
		name string
		opts CreateCommitsOptions
		want []string
	}{
		{
			name: "both tags",
			opts: CreateCommitsOptions{PrevTag: "v1.0", NextTag: "v2.0"},
			want: []string{"v1.0..v2.0"},
		},
		{
			name: "upper bound only",
			opts: CreateCommitsOptions{NextTag: "v2.0"},
			want: []string{"v2.0"},
		},
		{
			name: "lower bound only excludes history at or before the tag",
			opts: CreateCommitsOptions{PrevTag: "v1.0"},
			want: []string{"v1.0..HEAD"},
		},
		{
			name: "time bounded",
			opts: CreateCommitsOptions{Since: 1600000000, Until: 1630000000},
			want: []string{"HEAD", "--since=1600000000", "--until=1630000000"},
		},
		{
			name: "unbounded",
			opts: CreateCommitsOptions{},
			want: []string{"HEAD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := revisionRange(tt.opts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("revisionRange(%+v) = %v, want %v", tt.opts, got, tt.want)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("https://example.com/org/project.git")
	b := cacheKey("https://example.com/other/project.git")

	if !strings.HasPrefix(a, "project-") {
		t.Errorf("cacheKey = %q, want a project- prefix", a)
	}
	if a == b {
		t.Error("different URLs with the same basename must not collide")
	}
	if a != cacheKey("https://example.com/org/project.git") {
		t.Error("cacheKey is not stable")
	}
}
