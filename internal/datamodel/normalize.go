package datamodel

import (
	"context"

	"prospector/internal/logging"
	"prospector/internal/repository"
)

// CommitLoader loads the expensive per-commit data (diff, containing
// tags) that candidate listing deliberately leaves out.
type CommitLoader interface {
	CommitDiff(ctx context.Context, commitID string) ([]string, error)
	TagsForCommit(ctx context.Context, commitID string) ([]string, error)
}

// Normalizer turns raw commits into preprocessed Commits. A Normalizer
// never fails: a commit whose diff or tags cannot be loaded yields a
// Commit with the corresponding features empty and a logged warning, so
// one malformed commit cannot abort a preprocessing batch.
type Normalizer struct {
	loader CommitLoader
	logger *logging.Logger
}

// NewNormalizer creates a Normalizer backed by loader.
func NewNormalizer(loader CommitLoader, logger *logging.Logger) *Normalizer {
	return &Normalizer{loader: loader, logger: logger}
}

// Normalize extracts features from a raw commit. The simplified pass
// keeps only the coarse message-derived signals and skips the diff and
// tag loading; it is enough to confirm an advisory-referenced commit and
// costs a fraction of the full pass.
func (n *Normalizer) Normalize(ctx context.Context, raw *repository.RawCommit, simplify bool) *Commit {
	c := &Commit{
		CommitID:     raw.ID,
		Repository:   raw.Repository,
		Timestamp:    raw.Timestamp,
		Message:      raw.Message,
		ChangedFiles: raw.ChangedFiles,
		Simplified:   simplify,
		Tags:         raw.Tags,
	}
	c.CVERefs, c.GHIssueRefs, c.JiraRefs = extractMessageRefs(raw.Message)

	if simplify {
		return c
	}

	diff := raw.Diff
	if len(diff) == 0 && n.loader != nil {
		loaded, err := n.loader.CommitDiff(ctx, raw.ID)
		if err != nil {
			n.logger.Warn("Could not load commit diff, continuing without diff features", map[string]interface{}{
				"commitId": raw.ID,
				"error":    err.Error(),
			})
		} else {
			diff = loaded
		}
	}
	c.HunkCount = countHunks(diff)

	if len(c.Tags) == 0 && n.loader != nil {
		tags, err := n.loader.TagsForCommit(ctx, raw.ID)
		if err != nil {
			n.logger.Warn("Could not resolve tags for commit", map[string]interface{}{
				"commitId": raw.ID,
				"error":    err.Error(),
			})
		} else {
			c.Tags = tags
		}
	}

	return c
}
