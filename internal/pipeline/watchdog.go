package pipeline

import "time"

const (
	// overloadMinCandidates gates the watchdog: small candidate sets
	// are allowed to be slow.
	overloadMinCandidates = 1000

	// watchdogSampleInterval is how often (in processed commits) the
	// elapsed-time check runs.
	watchdogSampleInterval = 100

	// watchdogSecondsPerCommit is the sustained per-commit budget;
	// exceeding 2x the processed count in elapsed seconds reads as a
	// systemic slowdown rather than a few slow commits.
	watchdogSecondsPerCommit = 2
)

// Watchdog aborts local preprocessing when sustained throughput is too
// low to finish in reasonable time. The check is sampled every
// watchdogSampleInterval processed commits and compares wall time
// against the processed count, so an abort always lands on a sample
// boundary and is reproducible for a given timing profile.
type Watchdog struct {
	candidates int
	start      time.Time
	now        func() time.Time
}

// NewWatchdog creates a watchdog for a run over the given candidate
// count. now defaults to time.Now; tests inject a synthetic clock.
func NewWatchdog(candidates int, now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}
	return &Watchdog{
		candidates: candidates,
		start:      now(),
		now:        now,
	}
}

// Check reports whether preprocessing should abort after processed
// commits.
func (w *Watchdog) Check(processed int) bool {
	if w.candidates <= overloadMinCandidates {
		return false
	}
	if processed == 0 || processed%watchdogSampleInterval != 0 {
		return false
	}
	elapsed := w.now().Sub(w.start)
	budget := time.Duration(processed) * watchdogSecondsPerCommit * time.Second
	return elapsed > budget
}
