package pipeline

import (
	"context"

	"prospector/internal/datamodel"
	"prospector/internal/repository"
)

// buildWindow lists the candidate commits for the run. Tag-bounded when
// the interval resolved; time-bounded around the publication date when
// it did not but a date exists.
func (p *Pipeline) buildWindow(ctx context.Context, opts Options, pair repository.TagPair) (*repository.CandidateSet, error) {
	stop := p.stats.Timer("candidateRetrieval")
	defer stop()

	createOpts := repository.CreateCommitsOptions{
		PrevTag:          pair.Prev,
		NextTag:          pair.Next,
		FilterExtensions: opts.Advisory.FileExtensions,
	}

	if pair.IsEmpty() {
		published := opts.Advisory.PublishedTimestamp
		createOpts.Since = published - int64(opts.TimeLimitBefore.Seconds())
		createOpts.Until = published + int64(opts.TimeLimitAfter.Seconds())
		p.logger.Info("Using time-bounded candidate window", map[string]interface{}{
			"since": createOpts.Since,
			"until": createOpts.Until,
		})
	}

	candidates, err := p.repo.CreateCommits(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	p.stats.Record("candidates", candidates.Len())
	p.logger.Info("Retrieved candidate commits", map[string]interface{}{
		"count": candidates.Len(),
	})
	return candidates, nil
}

// tagAndAggregateCommits keeps only the ranked commits first shipped in
// the release the advisory claims fixed the vulnerability, collapsing
// each survivor's tag list to that release and rewriting its twin
// entries with the tags resolved for the twins themselves. Without a
// resolved next tag the stage is a passthrough.
func tagAndAggregateCommits(commits []*datamodel.Commit, nextTag string) []*datamodel.Commit {
	if nextTag == "" {
		return commits
	}

	twinTags := make(map[string]string, len(commits))
	for _, c := range commits {
		twinTags[c.CommitID] = c.FirstTag()
	}

	tagged := make([]*datamodel.Commit, 0, len(commits))
	for _, c := range commits {
		if !c.HasTag(nextTag) {
			continue
		}
		c.Tags = []string{nextTag}
		for i := range c.Twins {
			if tag, ok := twinTags[c.Twins[i].CommitID]; ok {
				c.Twins[i].Tag = tag
			} else {
				c.Twins[i].Tag = datamodel.NoTag
			}
		}
		tagged = append(tagged, c)
	}
	return tagged
}
