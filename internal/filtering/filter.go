// Package filtering drops candidates that cannot plausibly be a fix
// before the expensive preprocessing stage.
package filtering

import (
	"strings"

	"prospector/internal/repository"
)

const (
	// maxChangedFiles rejects bulk changes (vendoring, reformats,
	// generated code). Real fixes touch few files.
	maxChangedFiles = 100

	// maxMessageLength rejects commits whose message is mostly a
	// changelog paste.
	maxMessageLength = 5000
)

// irrelevantPrefixes mark commits that never encode a fix.
var irrelevantPrefixes = []string{
	"merge ",
	"merge:",
	"revert ",
	"bump version",
	"update changelog",
	"prepare release",
	"[maven-release-plugin]",
}

// FilterCommits returns the candidates worth analyzing and the number of
// rejected ones.
func FilterCommits(candidates *repository.CandidateSet) (*repository.CandidateSet, int) {
	kept := repository.NewCandidateSet()
	rejected := 0
	for _, c := range candidates.Commits() {
		if relevant(c) {
			kept.Add(c)
		} else {
			rejected++
		}
	}
	return kept, rejected
}

func relevant(c *repository.RawCommit) bool {
	if strings.TrimSpace(c.Message) == "" {
		return false
	}
	if len(c.Message) > maxMessageLength {
		return false
	}
	if len(c.ChangedFiles) > maxChangedFiles {
		return false
	}
	subject := strings.ToLower(c.Subject())
	for _, prefix := range irrelevantPrefixes {
		if strings.HasPrefix(subject, prefix) {
			return false
		}
	}
	return true
}
