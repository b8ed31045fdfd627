package pipeline

import (
	"context"

	"prospector/internal/datamodel"
	"prospector/internal/repository"
)

// findTwins is the fast path used when the advisory names fixing commits
// directly: look up each referenced commit and everything asserted
// equivalent to it, and rank just that small set. Any error here is
// recoverable; the caller falls through to the full pipeline.
func (p *Pipeline) findTwins(ctx context.Context, opts Options, commitIDs []string) ([]*datamodel.Commit, error) {
	union := repository.NewCandidateSet()
	for _, id := range dedupeIDs(commitIDs) {
		set, err := p.repo.FindTwinLookupCommits(ctx, id)
		if err != nil {
			return nil, err
		}
		// Later lookups override on id collision.
		union.Merge(set)
	}

	filtered, rejected := p.filter(union)
	if rejected > 0 {
		p.logger.Debug("Twin lookup filtering dropped candidates", map[string]interface{}{
			"rejected": rejected,
		})
	}

	// The simplified extraction is enough to confirm a referenced
	// commit; the full pass would be wasted work here.
	commits := make([]*datamodel.Commit, 0, filtered.Len())
	for _, raw := range filtered.Commits() {
		commits = append(commits, p.normalizer.Normalize(ctx, raw, true))
	}

	linkTwins(commits)

	ranked, err := p.evaluate(commits, opts.Advisory, []string{"ALL"})
	if err != nil {
		return nil, err
	}

	if len(ranked) > twinResultLimit {
		ranked = ranked[:twinResultLimit]
	}
	return ranked, nil
}

// twinMatch reports whether a ranked commit confirms one of the
// advisory-referenced ids. Reference ids extracted from URLs may be
// abbreviated, so prefix matches count.
func twinMatch(ranked []*datamodel.Commit, commitIDs []string) bool {
	for _, c := range ranked {
		for _, id := range commitIDs {
			if c.CommitID == id || (len(id) >= 6 && len(c.CommitID) > len(id) && c.CommitID[:len(id)] == id) {
				return true
			}
		}
	}
	return false
}

// linkTwins records twin relationships among the given commits.
// Backports and cherry-picks keep the message subject, so commits
// sharing a subject are asserted equivalent. Each twin entry carries the
// twin's own first tag, or the no-tag sentinel.
func linkTwins(commits []*datamodel.Commit) {
	bySubject := make(map[string][]*datamodel.Commit)
	for _, c := range commits {
		subject := c.Subject()
		if subject == "" {
			continue
		}
		bySubject[subject] = append(bySubject[subject], c)
	}

	for _, group := range bySubject {
		if len(group) < 2 {
			continue
		}
		for _, c := range group {
			for _, other := range group {
				if other.CommitID == c.CommitID || hasTwin(c, other.CommitID) {
					continue
				}
				c.Twins = append(c.Twins, datamodel.TwinEntry{
					Tag:      other.FirstTag(),
					CommitID: other.CommitID,
				})
			}
		}
	}
}

func hasTwin(c *datamodel.Commit, id string) bool {
	for _, t := range c.Twins {
		if t.CommitID == id {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
