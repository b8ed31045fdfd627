// Package advisory builds the structured advisory record an analysis run
// works from. Construction fails soft: when the vulnerability database is
// unreachable or a field is missing, the record is returned with that
// field absent instead of aborting the run.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"prospector/internal/logging"
)

// Record describes the vulnerability being analyzed. Only the
// HasFixingCommit flag mutates after construction.
type Record struct {
	VulnerabilityID    string   `json:"vulnerabilityId"`
	Description        string   `json:"description,omitempty"`
	PublishedTimestamp int64    `json:"publishedTimestamp,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	ModifiedFiles      []string `json:"modifiedFiles,omitempty"`
	FileExtensions     []string `json:"fileExtensions,omitempty"`

	// FixingCommits are commit ids named directly by advisory
	// references. Possibly empty.
	FixingCommits []string `json:"fixingCommits,omitempty"`

	// HasFixingCommit is set when one of FixingCommits was confirmed in
	// the repository.
	HasFixingCommit bool `json:"hasFixingCommit"`
}

// BuildOptions configures record construction.
type BuildOptions struct {
	VulnerabilityID string
	Description     string
	NvdEndpoint     string
	FetchReferences bool
	UseNvd          bool
	PublishedDate   string
	Keywords        []string
	ModifiedFiles   []string
	HTTPTimeout     time.Duration
}

var commitRefPattern = regexp.MustCompile(`/commits?/([0-9a-f]{6,40})`)

// Build constructs the advisory record. Network lookups that fail are
// logged and leave the corresponding fields empty.
func Build(ctx context.Context, opts BuildOptions, logger *logging.Logger) *Record {
	rec := &Record{
		VulnerabilityID: opts.VulnerabilityID,
		Description:     opts.Description,
		Keywords:        opts.Keywords,
		ModifiedFiles:   opts.ModifiedFiles,
	}

	if opts.PublishedDate != "" {
		ts, err := parseDate(opts.PublishedDate)
		if err != nil {
			logger.Warn("Could not parse publication date", map[string]interface{}{
				"date":  opts.PublishedDate,
				"error": err.Error(),
			})
		} else {
			rec.PublishedTimestamp = ts
		}
	}

	if opts.UseNvd && opts.NvdEndpoint != "" {
		fetchNvd(ctx, rec, opts, logger)
	}

	if len(rec.Keywords) == 0 && rec.Description != "" {
		rec.Keywords = extractKeywords(rec.Description)
	}
	rec.FileExtensions = extensionHints(rec.ModifiedFiles)

	return rec
}

// nvdResponse is the subset of the NVD 2.0 response we read.
type nvdResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			Published    string `json:"published"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			References []struct {
				URL string `json:"url"`
			} `json:"references"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

func fetchNvd(ctx context.Context, rec *Record, opts BuildOptions, logger *logging.Logger) {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := opts.NvdEndpoint + "?cveId=" + url.QueryEscape(opts.VulnerabilityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		logger.Warn("Could not build vulnerability database request", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Warn("Vulnerability database not reachable, continuing with supplied fields", map[string]interface{}{
			"vulnerabilityId": opts.VulnerabilityID,
			"error":           err.Error(),
		})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Vulnerability database returned non-success status", map[string]interface{}{
			"vulnerabilityId": opts.VulnerabilityID,
			"status":          resp.StatusCode,
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		logger.Warn("Could not read vulnerability database response", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	var parsed nvdResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logger.Warn("Could not parse vulnerability database response", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(parsed.Vulnerabilities) == 0 {
		logger.Warn("Vulnerability not found in database", map[string]interface{}{
			"vulnerabilityId": opts.VulnerabilityID,
		})
		return
	}

	cve := parsed.Vulnerabilities[0].CVE

	if rec.Description == "" {
		for _, d := range cve.Descriptions {
			if d.Lang == "en" {
				rec.Description = d.Value
				break
			}
		}
	}

	if rec.PublishedTimestamp == 0 && cve.Published != "" {
		if ts, err := parseDate(cve.Published); err == nil {
			rec.PublishedTimestamp = ts
		}
	}

	if opts.FetchReferences {
		for _, ref := range cve.References {
			rec.FixingCommits = append(rec.FixingCommits, ExtractCommitRefs(ref.URL)...)
		}
		rec.FixingCommits = dedupe(rec.FixingCommits)
	}
}

// ExtractCommitRefs pulls commit ids out of a reference URL
// (github/gitlab/bitbucket commit links).
func ExtractCommitRefs(ref string) []string {
	var out []string
	for _, m := range commitRefPattern.FindAllStringSubmatch(strings.ToLower(ref), -1) {
		out = append(out, m[1])
	}
	return out
}

// parseDate accepts the date layouts advisories come with.
func parseDate(s string) (int64, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date format: %q", s)
}

// stopwords excluded from extracted keywords.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "before": true, "by": true, "can": true, "could": true,
	"for": true, "from": true, "has": true, "have": true, "in": true,
	"is": true, "it": true, "its": true, "may": true, "not": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "used": true, "uses": true, "using": true,
	"via": true, "was": true, "when": true, "which": true, "with": true,
	"allows": true, "attacker": true, "attackers": true, "remote": true,
	"vulnerability": true, "versions": true, "version": true,
}

const maxKeywords = 30

var tokenPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_.-]{3,}`)

// extractKeywords derives search keywords from the advisory description.
func extractKeywords(description string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(description, -1) {
		w := strings.ToLower(strings.Trim(tok, ".-"))
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// extensionHints derives file-extension hints from the advisory's
// modified file paths.
func extensionHints(files []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range files {
		ext := strings.TrimPrefix(filepath.Ext(f), ".")
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
