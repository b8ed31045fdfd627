// Package pipeline orchestrates fix-commit discovery for one advisory:
// tag interval resolution, the advisory-reference short-circuit,
// candidate-window construction, cache reconciliation against the
// feature store, ranking and tag aggregation. Control flows linearly;
// the short-circuit, when it confirms a referenced commit, bypasses
// everything after it.
package pipeline

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"prospector/internal/advisory"
	"prospector/internal/datamodel"
	"prospector/internal/errors"
	"prospector/internal/repository"
	"prospector/internal/store"
)

// Run analyzes one advisory against the repository and returns the
// ranked fix candidates. Terminal conditions come back as a
// *errors.ProspectorError carrying a sentinel candidate count: -1 for an
// unresolvable interval, the observed count for candidate overflow and
// preprocessing overload. Terminal errors never panic or exit; batch
// callers continue with the next advisory.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	adv := opts.Advisory
	runID := uuid.New().String()

	stopRun := p.stats.Timer("run")
	defer stopRun()
	defer func() {
		p.logger.Info("Run statistics", p.stats.Fields())
	}()

	p.logger.Debug("Starting analysis", map[string]interface{}{
		"runId":           runID,
		"vulnerabilityId": adv.VulnerabilityID,
		"repository":      p.repo.URL(),
		"storeMode":       p.storeMode.String(),
	})

	if err := p.repo.Clone(ctx); err != nil {
		return nil, err
	}

	tags, err := p.repo.GetTags(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Retrieved repository tags", map[string]interface{}{
		"count": len(tags),
	})

	// Fast path: the advisory references fixing commits directly.
	if len(adv.FixingCommits) > 0 && !opts.IgnoreAdvisoryRefs {
		p.logger.Info("Fixing commit found in the advisory references", map[string]interface{}{
			"commitIds": adv.FixingCommits,
		})
		ranked, err := p.findTwins(ctx, opts, adv.FixingCommits)
		switch {
		case err != nil:
			// Never fatal: a missing or unreachable referenced commit
			// must not abort the analysis.
			p.logger.Warn("Referenced commit lookup failed, falling through to full analysis", map[string]interface{}{
				"error": err.Error(),
			})
		case twinMatch(ranked, adv.FixingCommits):
			adv.HasFixingCommit = true
			p.stats.Record("rankedCommits", len(ranked))
			return &Result{RunID: runID, Commits: ranked, Advisory: adv}, nil
		default:
			p.logger.Info("Referenced commit not confirmed in the repository, falling through to full analysis", nil)
		}
	}

	if opts.VersionInterval == "" {
		p.logger.Info("No version interval provided", nil)
		return nil, errors.New(errors.TagMismatch, "No version interval provided", nil).
			WithCandidateCount(-1)
	}

	pair := repository.ResolveTagPair(tags, opts.VersionInterval)
	if pair.IsEmpty() && adv.PublishedTimestamp == 0 {
		p.logger.Info("Tag mismatch", map[string]interface{}{
			"interval": opts.VersionInterval,
		})
		return nil, errors.New(errors.TagMismatch, "Version interval did not resolve to any tag", nil).
			WithDetails(map[string]interface{}{"interval": opts.VersionInterval}).
			WithCandidateCount(-1)
	}
	if !pair.IsEmpty() {
		p.logger.Info("Resolved version interval", map[string]interface{}{
			"prevTag": pair.Prev,
			"nextTag": pair.Next,
		})
	}

	candidates, err := p.buildWindow(ctx, opts, pair)
	if err != nil {
		return nil, err
	}

	candidates, rejected := p.filter(candidates)
	p.stats.Record("filteredOut", rejected)
	if rejected > 0 {
		p.logger.Info("Candidate filtering dropped commits", map[string]interface{}{
			"rejected": rejected,
		})
	}

	if candidates.Len() > opts.LimitCandidates {
		p.logger.Error("Candidate count exceeds the ceiling, aborting", map[string]interface{}{
			"candidates": candidates.Len(),
			"limit":      opts.LimitCandidates,
		})
		return nil, errors.New(errors.TooManyCandidates, "Too many candidates to proceed", nil).
			WithCandidateCount(candidates.Len())
	}

	preprocessed, err := p.preprocess(ctx, candidates)
	if err != nil {
		return nil, err
	}

	linkTwins(preprocessed)

	ranked, err := p.evaluate(preprocessed, adv, opts.Rules)
	if err != nil {
		return nil, err
	}

	ranked = tagAndAggregateCommits(ranked, pair.Next)
	p.stats.Record("rankedCommits", len(ranked))

	return &Result{RunID: runID, Commits: ranked, Advisory: adv}, nil
}

// preprocess reconciles the candidate set against the feature caches and
// computes features locally for whatever is left.
func (p *Pipeline) preprocess(ctx context.Context, candidates *repository.CandidateSet) ([]*datamodel.Commit, error) {
	stop := p.stats.Timer("commitPreprocessing")
	defer stop()

	preprocessed := make([]*datamodel.Commit, 0, candidates.Len())
	remaining := candidates.IDs()

	// Local cache first: cheaper than any network round trip.
	if p.localCache != nil {
		hits, err := p.localCache.Get(ctx, p.repo.URL(), remaining)
		if err != nil {
			p.logger.Warn("Local cache lookup failed, ignoring cache", map[string]interface{}{
				"error": err.Error(),
			})
		} else if len(hits) > 0 {
			preprocessed = appendRecords(preprocessed, hits)
			remaining = subtractIDs(remaining, hits)
			p.stats.Record("localCacheHits", len(hits))
		}
	}

	// Remote store, batched. The first failed batch ends the lookup;
	// everything not yet confirmed counts as missing.
	if p.storeMode != store.ModeNever && len(remaining) > 0 {
		fetched, err := p.fetchFromStore(ctx, remaining)
		if err != nil {
			return nil, err
		}
		preprocessed = appendRecords(preprocessed, fetched)
		remaining = subtractIDs(remaining, fetched)
		p.stats.Record("storeHits", len(fetched))
	}

	if len(remaining) == 0 {
		p.logger.Info("All commits found preprocessed", nil)
		return preprocessed, nil
	}

	p.logger.Info("Preprocessing commits locally", map[string]interface{}{
		"missing": len(remaining),
		"total":   candidates.Len(),
	})

	// Local preprocessing with the overload watchdog. Sustained slow
	// extraction on a big candidate set reads as a systemic timeout.
	watchdog := NewWatchdog(candidates.Len(), p.now)
	computed := make([]*datamodel.Commit, 0, len(remaining))
	processed := 0
	for _, id := range remaining {
		raw := candidates.Get(id)
		if raw == nil {
			continue
		}
		computed = append(computed, p.normalizer.Normalize(ctx, raw, false))
		processed++
		p.stats.Record("preprocessedCommits", processed)

		if processed%watchdogSampleInterval == 0 {
			p.logger.Debug("Preprocessing progress", map[string]interface{}{
				"processed": processed,
				"missing":   len(remaining),
			})
		}
		if watchdog.Check(processed) {
			p.logger.Error("Preprocessing overload, aborting", map[string]interface{}{
				"processed":  processed,
				"candidates": candidates.Len(),
			})
			return nil, errors.New(errors.PreprocessingOverload, "Preprocessing timeout", nil).
				WithCandidateCount(candidates.Len())
		}
	}

	p.persist(ctx, computed)

	return append(preprocessed, computed...), nil
}

// fetchFromStore reconciles ids against the remote store in fixed
// batches. A non-success response stops the lookup without retry; a
// transport-level failure is fatal only in always mode.
func (p *Pipeline) fetchFromStore(ctx context.Context, ids []string) ([]datamodel.Commit, error) {
	var fetched []datamodel.Commit
	for i := 0; i < len(ids); i += store.BatchSize {
		end := i + store.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		records, err := p.store.FetchBatch(ctx, p.repo.URL(), ids[i:end])
		if err != nil {
			var storeErr *store.StoreError
			if stderrors.As(err, &storeErr) {
				// The store answered; some of the batch is simply not
				// there yet.
				p.logger.Info("One or more commits are not in the store", map[string]interface{}{
					"status": storeErr.StatusCode,
				})
				break
			}
			if p.storeMode == store.ModeAlways {
				return nil, errors.New(errors.StoreUnreachable, "Feature store not reachable", err)
			}
			p.logger.Warn("Feature store not reachable, continuing with local computation", map[string]interface{}{
				"error": err.Error(),
			})
			break
		}
		fetched = append(fetched, records...)
	}
	p.logger.Info("Found preprocessed commits in the store", map[string]interface{}{
		"count": len(fetched),
	})
	return fetched, nil
}

// persist pushes newly computed features to the caches, best effort. A
// write failure never fails the run.
func (p *Pipeline) persist(ctx context.Context, computed []*datamodel.Commit) {
	if len(computed) == 0 {
		return
	}

	if p.localCache != nil {
		if err := p.localCache.Put(ctx, p.repo.URL(), computed); err != nil {
			p.logger.Warn("Could not update local feature cache", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if p.storeMode == store.ModeNever {
		p.logger.Warn("Preprocessed commits are not being sent to the store", nil)
		return
	}

	stop := p.stats.Timer("storeSave")
	defer stop()
	if err := p.store.Save(ctx, computed); err != nil {
		p.logger.Warn("Could not save preprocessed commits to the store", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	p.stats.Record("storeSaved", len(computed))
}

// evaluate scores and orders commits.
func (p *Pipeline) evaluate(commits []*datamodel.Commit, adv *advisory.Record, ruleNames []string) ([]*datamodel.Commit, error) {
	stop := p.stats.Timer("candidateAnalysis")
	defer stop()

	scored, err := p.ranker.ApplyRules(commits, adv, ruleNames)
	if err != nil {
		return nil, err
	}
	return p.ranker.ApplyRanking(scored), nil
}

func appendRecords(commits []*datamodel.Commit, records []datamodel.Commit) []*datamodel.Commit {
	for i := range records {
		rec := records[i]
		commits = append(commits, &rec)
	}
	return commits
}

// subtractIDs removes the ids covered by records, preserving order.
func subtractIDs(ids []string, records []datamodel.Commit) []string {
	covered := make(map[string]bool, len(records))
	for i := range records {
		covered[records[i].CommitID] = true
	}
	out := ids[:0]
	for _, id := range ids {
		if !covered[id] {
			out = append(out, id)
		}
	}
	return out
}
