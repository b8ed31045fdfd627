// Package datamodel holds the preprocessed commit representation consumed
// by the ranking rules, and the feature extraction that produces it from
// raw git commits.
package datamodel

import (
	"regexp"
	"strings"
)

// NoTag marks a twin whose own tag could not be resolved.
const NoTag = "no-tag"

// TwinEntry asserts that another commit encodes the same logical change,
// typically a backport or cherry-pick. Tag is the tag under which the
// twin was observed.
type TwinEntry struct {
	Tag      string `json:"tag"`
	CommitID string `json:"commit_id"`
}

// Commit is a preprocessed candidate. Identity and feature fields travel
// over the store wire format; Score and MatchedRules are run-local and
// assigned by ranking. Tags and Twins are rewritten by tag aggregation
// after ranking.
type Commit struct {
	CommitID     string   `json:"commit_id"`
	Repository   string   `json:"repository"`
	Timestamp    int64    `json:"timestamp"`
	Message      string   `json:"message"`
	ChangedFiles []string `json:"changed_files"`

	// Extracted features
	HunkCount   int      `json:"hunk_count"`
	CVERefs     []string `json:"cve_refs"`
	GHIssueRefs []string `json:"ghissue_refs"`
	JiraRefs    []string `json:"jira_refs"`

	// Simplified marks a coarse extraction pass that skipped the
	// diff-derived features. Simplified commits are never persisted to
	// the store.
	Simplified bool `json:"simplified,omitempty"`

	Tags  []string    `json:"tags,omitempty"`
	Twins []TwinEntry `json:"twins,omitempty"`

	Score        float64  `json:"-"`
	MatchedRules []string `json:"-"`
}

// Subject returns the first line of the commit message.
func (c *Commit) Subject() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// HasTag reports whether tag is in the commit's tag set.
func (c *Commit) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FirstTag returns the first tag of the commit, the release it first
// shipped in, or NoTag.
func (c *Commit) FirstTag() string {
	if len(c.Tags) > 0 {
		return c.Tags[0]
	}
	return NoTag
}

var (
	cveRefPattern     = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)
	ghIssueRefPattern = regexp.MustCompile(`#(\d+)`)
	jiraRefPattern    = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)
)

// extractMessageRefs pulls CVE, GitHub-issue and Jira references out of a
// commit message.
func extractMessageRefs(message string) (cves, ghIssues, jiras []string) {
	for _, m := range cveRefPattern.FindAllString(message, -1) {
		cves = appendUnique(cves, strings.ToUpper(m))
	}
	for _, m := range ghIssueRefPattern.FindAllStringSubmatch(message, -1) {
		ghIssues = appendUnique(ghIssues, m[1])
	}
	for _, m := range jiraRefPattern.FindAllString(message, -1) {
		// CVE ids match the Jira shape too
		if cveRefPattern.MatchString(m) {
			continue
		}
		jiras = appendUnique(jiras, m)
	}
	return cves, ghIssues, jiras
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// countHunks counts hunk headers in a unified diff.
func countHunks(diff []string) int {
	n := 0
	for _, line := range diff {
		if strings.HasPrefix(line, "@@") {
			n++
		}
	}
	return n
}
