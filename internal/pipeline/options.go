package pipeline

import (
	"time"

	"prospector/internal/advisory"
	"prospector/internal/datamodel"
)

const (
	// DefaultLimitCandidates is the hard candidate-count ceiling.
	DefaultLimitCandidates = 2000

	// DefaultTimeLimitBefore / DefaultTimeLimitAfter bound the
	// time-based candidate window around the publication date. Fixes
	// are usually authored before disclosure, hence the asymmetry.
	DefaultTimeLimitBefore = 3 * 365 * 24 * time.Hour
	DefaultTimeLimitAfter  = 365 * 24 * time.Hour

	// twinResultLimit truncates the short-circuit result.
	twinResultLimit = 100
)

// Options configures one pipeline run.
type Options struct {
	// Advisory is the record built for the vulnerability under
	// analysis. Required.
	Advisory *advisory.Record

	// VersionInterval is the user-supplied interval string
	// ("2.14.1:2.15.0", possibly open-ended). Empty ends the run
	// immediately; scanning unbounded history is a cost nobody wants to
	// pay by accident.
	VersionInterval string

	// TimeLimitBefore / TimeLimitAfter override the time-window bounds.
	TimeLimitBefore time.Duration
	TimeLimitAfter  time.Duration

	// LimitCandidates overrides the candidate ceiling.
	LimitCandidates int

	// Rules selects the rules to score with, or the sentinel "ALL".
	Rules []string

	// IgnoreAdvisoryRefs skips the advisory-referenced commit
	// short-circuit.
	IgnoreAdvisoryRefs bool
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.TimeLimitBefore <= 0 {
		out.TimeLimitBefore = DefaultTimeLimitBefore
	}
	if out.TimeLimitAfter <= 0 {
		out.TimeLimitAfter = DefaultTimeLimitAfter
	}
	if out.LimitCandidates <= 0 {
		out.LimitCandidates = DefaultLimitCandidates
	}
	if len(out.Rules) == 0 {
		out.Rules = []string{"ALL"}
	}
	return out
}

// Result is a successful run: ranked candidates with provenance.
type Result struct {
	RunID    string              `json:"runId"`
	Commits  []*datamodel.Commit `json:"commits"`
	Advisory *advisory.Record    `json:"advisory"`
}
