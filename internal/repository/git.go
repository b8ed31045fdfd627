// Package repository provides access to the target git repository: clone
// caching, tag listing, candidate-window commit listing and twin lookups.
// All git interaction shells out to the git binary with per-command
// timeouts.
package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"prospector/internal/errors"
	"prospector/internal/logging"
)

const (
	// DefaultCommandTimeout bounds a single git invocation
	DefaultCommandTimeout = 60 * time.Second

	// DefaultCloneTimeout bounds the initial clone, which can be large
	DefaultCloneTimeout = 10 * time.Minute

	// maxTwinLookupCommits caps the commits returned for one twin lookup
	maxTwinLookupCommits = 50

	// maxDiffLines caps the diff loaded for a single commit
	maxDiffLines = 10000
)

// record/field separators used in git log formats
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// Git is the repository collaborator. Clones are cached on disk keyed by
// URL, so repeated runs against the same repository skip the clone.
type Git struct {
	url            string
	path           string
	cloneTimeout   time.Duration
	commandTimeout time.Duration
	logger         *logging.Logger
}

// Options configures a Git instance.
type Options struct {
	CloneTimeout   time.Duration
	CommandTimeout time.Duration
}

// NewGit creates a repository handle for url, cached under cachePath.
func NewGit(url, cachePath string, opts Options, logger *logging.Logger) *Git {
	if opts.CloneTimeout <= 0 {
		opts.CloneTimeout = DefaultCloneTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	return &Git{
		url:            url,
		path:           filepath.Join(cachePath, cacheKey(url)),
		cloneTimeout:   opts.CloneTimeout,
		commandTimeout: opts.CommandTimeout,
		logger:         logger,
	}
}

// cacheKey derives a stable directory name from the repository URL.
func cacheKey(url string) string {
	base := strings.TrimSuffix(filepath.Base(strings.TrimSuffix(url, "/")), ".git")
	sum := sha1.Sum([]byte(url))
	return base + "-" + hex.EncodeToString(sum[:6])
}

// URL returns the repository URL.
func (g *Git) URL() string {
	return g.url
}

// Path returns the local clone path.
func (g *Git) Path() string {
	return g.path
}

// Clone materializes the repository in the local cache. Idempotent: an
// existing clone is refreshed with a fetch instead.
func (g *Git) Clone(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.path, ".git")); err == nil {
		g.logger.Debug("Repository already cloned, fetching", map[string]interface{}{
			"url":  g.url,
			"path": g.path,
		})
		_, err := g.execGitTimeout(ctx, g.cloneTimeout, "fetch", "--all", "--tags", "--force")
		return err
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return errors.New(errors.RepositoryError, "Failed to create git cache directory", err)
	}

	g.logger.Info("Cloning repository", map[string]interface{}{
		"url":  g.url,
		"path": g.path,
	})

	ctx, cancel := context.WithTimeout(ctx, g.cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", g.url, g.path)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.New(errors.Timeout, "Git clone timed out", err)
		}
		return errors.New(errors.RepositoryError, "Git clone failed", err).
			WithDetails(map[string]interface{}{"output": string(out)})
	}
	return nil
}

// GetTags returns all tags ordered by creation date, oldest first.
func (g *Git) GetTags(ctx context.Context) ([]string, error) {
	return g.execGitLines(ctx, "tag", "--sort=creatordate")
}

// CreateCommitsOptions bounds the candidate window. Either a tag range or
// a time range is set, never both.
type CreateCommitsOptions struct {
	Since            int64
	Until            int64
	PrevTag          string
	NextTag          string
	FilterExtensions []string
}

// CreateCommits lists the commits inside the candidate window as a
// CandidateSet. Commit message and changed files come from a single git
// log invocation; diffs and tags are loaded later, per commit, during
// preprocessing.
func (g *Git) CreateCommits(ctx context.Context, opts CreateCommitsOptions) (*CandidateSet, error) {
	args := []string{
		"log",
		"--format=" + recordSep + "%H" + fieldSep + "%at" + fieldSep + "%B" + fieldSep,
		"--name-only",
	}
	args = append(args, revisionRange(opts)...)

	if len(opts.FilterExtensions) > 0 {
		args = append(args, "--")
		for _, ext := range opts.FilterExtensions {
			args = append(args, "*."+strings.TrimPrefix(ext, "."))
		}
	}

	output, err := g.execGit(ctx, args...)
	if err != nil {
		return nil, err
	}

	return g.parseCommitRecords(output), nil
}

// revisionRange builds the git log range arguments for the candidate
// window. Every resolved tag bounds the range; an open-ended interval
// with only a lower bound still excludes everything at or before that
// tag instead of walking the full history.
func revisionRange(opts CreateCommitsOptions) []string {
	switch {
	case opts.NextTag != "" && opts.PrevTag != "":
		return []string{opts.PrevTag + ".." + opts.NextTag}
	case opts.NextTag != "":
		return []string{opts.NextTag}
	case opts.PrevTag != "":
		return []string{opts.PrevTag + "..HEAD"}
	}

	args := []string{"HEAD"}
	if opts.Since > 0 {
		args = append(args, "--since="+strconv.FormatInt(opts.Since, 10))
	}
	if opts.Until > 0 {
		args = append(args, "--until="+strconv.FormatInt(opts.Until, 10))
	}
	return args
}

// FindTwinLookupCommits returns the given commit together with every
// commit asserted equivalent to it. Cherry-picks and backports keep the
// message subject, so twins are looked up by exact subject across all
// refs.
func (g *Git) FindTwinLookupCommits(ctx context.Context, commitID string) (*CandidateSet, error) {
	subject, err := g.execGit(ctx, "log", "-1", "--format=%s", commitID)
	if err != nil {
		return nil, errors.New(errors.TwinLookupFailed, "Commit not found in repository", err).
			WithDetails(map[string]interface{}{"commitId": commitID})
	}

	args := []string{
		"log",
		"--all",
		"--format=" + recordSep + "%H" + fieldSep + "%at" + fieldSep + "%B" + fieldSep,
		"--name-only",
		"--fixed-strings",
		"--grep=" + subject,
		"-n", strconv.Itoa(maxTwinLookupCommits),
	}
	output, err := g.execGit(ctx, args...)
	if err != nil {
		return nil, errors.New(errors.TwinLookupFailed, "Twin lookup failed", err).
			WithDetails(map[string]interface{}{"commitId": commitID})
	}

	set := g.parseCommitRecords(output)

	// Keep only commits whose subject matches exactly; --grep matches
	// anywhere in the message body.
	filtered := NewCandidateSet()
	for _, c := range set.Commits() {
		if c.Subject() == subject || c.ID == commitID {
			filtered.Add(c)
		}
	}
	return filtered, nil
}

// CommitDiff loads the unified diff for one commit, truncated to
// maxDiffLines.
func (g *Git) CommitDiff(ctx context.Context, commitID string) ([]string, error) {
	output, err := g.execGit(ctx, "show", "--format=", "--unified=1", commitID)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(output, "\n")
	if len(lines) > maxDiffLines {
		lines = lines[:maxDiffLines]
	}
	return lines, nil
}

// TagsForCommit returns the tags containing the commit, ordered by tag
// creation date. The first entry is the release the commit first shipped
// in.
func (g *Git) TagsForCommit(ctx context.Context, commitID string) ([]string, error) {
	return g.execGitLines(ctx, "tag", "--sort=creatordate", "--contains", commitID)
}

// parseCommitRecords parses the record-separated git log output produced
// by CreateCommits and FindTwinLookupCommits.
func (g *Git) parseCommitRecords(output string) *CandidateSet {
	set := NewCandidateSet()
	for _, record := range strings.Split(output, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, fieldSep, 4)
		if len(parts) != 4 {
			g.logger.Warn("Skipping malformed git log record", map[string]interface{}{
				"record": truncate(record, 120),
			})
			continue
		}

		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			g.logger.Warn("Skipping commit with unparsable timestamp", map[string]interface{}{
				"commitId": parts[0],
			})
			continue
		}

		var files []string
		for _, line := range strings.Split(parts[3], "\n") {
			if line = strings.TrimSpace(line); line != "" {
				files = append(files, line)
			}
		}

		set.Add(&RawCommit{
			ID:           parts[0],
			Repository:   g.url,
			Timestamp:    ts,
			Message:      strings.TrimSpace(parts[2]),
			ChangedFiles: files,
		})
	}
	return set
}

// execGit runs a git command in the clone with the standard timeout.
func (g *Git) execGit(ctx context.Context, args ...string) (string, error) {
	return g.execGitTimeout(ctx, g.commandTimeout, args...)
}

func (g *Git) execGitTimeout(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.path

	g.logger.Debug("Executing git command", map[string]interface{}{
		"args":    args,
		"timeout": timeout.String(),
	})

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.New(errors.Timeout, "Git command timed out", err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", errors.New(errors.RepositoryError, "Git command failed", err).
				WithDetails(map[string]interface{}{
					"args":   args,
					"stderr": truncate(string(exitErr.Stderr), 500),
				})
		}
		return "", errors.New(errors.RepositoryError, "Failed to execute git command", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// execGitLines runs a git command and returns non-empty output lines.
func (g *Git) execGitLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := g.execGit(ctx, args...)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return []string{}, nil
	}
	lines := strings.Split(output, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
