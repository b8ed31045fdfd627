// Package rules scores preprocessed commits against an advisory. Each
// rule contributes a relevance weight when it matches; ranking orders
// commits by total score with a deterministic tie-break.
package rules

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"prospector/internal/advisory"
	"prospector/internal/datamodel"
)

// RuleAll is the sentinel selecting every registered rule.
const RuleAll = "ALL"

// Rule matches one relevance signal between a commit and an advisory.
type Rule struct {
	Name        string
	Description string
	Weight      float64
	Match       func(c *datamodel.Commit, adv *advisory.Record) bool
}

// securityKeywords are generic fix-indicating terms.
var securityKeywords = []string{
	"security", "vulnerability", "vulnerable", "exploit", "attack",
	"overflow", "injection", "xss", "csrf", "rce", "dos", "denial of service",
	"sanitize", "escape", "unsafe", "insecure", "bypass", "disclosure",
}

// defaultRules returns the built-in rule set.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:        "VULN_ID_IN_MESSAGE",
			Description: "The commit message mentions the vulnerability id",
			Weight:      64,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				id := strings.ToUpper(adv.VulnerabilityID)
				if id == "" {
					return false
				}
				for _, ref := range c.CVERefs {
					if ref == id {
						return true
					}
				}
				return strings.Contains(strings.ToUpper(c.Message), id)
			},
		},
		{
			Name:        "COMMIT_IN_REFERENCE",
			Description: "The advisory references the commit directly",
			Weight:      64,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				for _, ref := range adv.FixingCommits {
					if strings.HasPrefix(c.CommitID, ref) || strings.HasPrefix(ref, c.CommitID) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:        "CHANGES_RELEVANT_FILES",
			Description: "The commit touches a file the advisory names",
			Weight:      32,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				for _, advFile := range adv.ModifiedFiles {
					base := filepath.Base(advFile)
					for _, f := range c.ChangedFiles {
						if filepath.Base(f) == base {
							return true
						}
					}
				}
				return false
			},
		},
		{
			Name:        "ADV_KEYWORDS_IN_MSG",
			Description: "Advisory keywords appear in the commit message",
			Weight:      16,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				msg := strings.ToLower(c.Message)
				for _, kw := range adv.Keywords {
					if strings.Contains(msg, kw) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:        "SEC_KEYWORDS_IN_MESSAGE",
			Description: "Generic security terms appear in the commit message",
			Weight:      16,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				msg := strings.ToLower(c.Message)
				for _, kw := range securityKeywords {
					if strings.Contains(msg, kw) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:        "ADV_KEYWORDS_IN_FILES",
			Description: "Advisory keywords appear in changed file paths",
			Weight:      8,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				for _, kw := range adv.Keywords {
					for _, f := range c.ChangedFiles {
						if strings.Contains(strings.ToLower(f), kw) {
							return true
						}
					}
				}
				return false
			},
		},
		{
			Name:        "RELEVANT_EXTENSIONS",
			Description: "Changed files match the advisory's extension hints",
			Weight:      4,
			Match: func(c *datamodel.Commit, adv *advisory.Record) bool {
				for _, ext := range adv.FileExtensions {
					suffix := "." + strings.TrimPrefix(ext, ".")
					for _, f := range c.ChangedFiles {
						if strings.HasSuffix(f, suffix) {
							return true
						}
					}
				}
				return false
			},
		},
	}
}

// Ranker applies a rule set and orders the result.
type Ranker struct {
	rules []Rule
}

// NewRanker creates a Ranker with the built-in rules.
func NewRanker() *Ranker {
	return &Ranker{rules: defaultRules()}
}

// weightsFile is the TOML override format:
//
//	[weights]
//	VULN_ID_IN_MESSAGE = 80
type weightsFile struct {
	Weights map[string]float64 `toml:"weights"`
}

// LoadWeights applies per-rule weight overrides from a TOML file.
func (r *Ranker) LoadWeights(path string) error {
	var wf weightsFile
	if _, err := toml.DecodeFile(path, &wf); err != nil {
		return fmt.Errorf("failed to load rule weights: %w", err)
	}
	for name, weight := range wf.Weights {
		found := false
		for i := range r.rules {
			if r.rules[i].Name == name {
				r.rules[i].Weight = weight
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown rule in weights file: %s", name)
		}
	}
	return nil
}

// RuleNames returns the registered rule names.
func (r *Ranker) RuleNames() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// ApplyRules scores each commit with the selected rules. names is a list
// of rule names, or the single sentinel "ALL". Unknown names are an
// error.
func (r *Ranker) ApplyRules(commits []*datamodel.Commit, adv *advisory.Record, names []string) ([]*datamodel.Commit, error) {
	selected, err := r.selectRules(names)
	if err != nil {
		return nil, err
	}

	for _, c := range commits {
		c.Score = 0
		c.MatchedRules = nil
		for _, rule := range selected {
			if rule.Match(c, adv) {
				c.Score += rule.Weight
				c.MatchedRules = append(c.MatchedRules, rule.Name)
			}
		}
	}
	return commits, nil
}

// ApplyRanking orders commits by descending score. Ties break on commit
// id so identical inputs always rank identically.
func (r *Ranker) ApplyRanking(commits []*datamodel.Commit) []*datamodel.Commit {
	sort.SliceStable(commits, func(i, j int) bool {
		if commits[i].Score != commits[j].Score {
			return commits[i].Score > commits[j].Score
		}
		return commits[i].CommitID < commits[j].CommitID
	})
	return commits
}

func (r *Ranker) selectRules(names []string) ([]Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) == 1 && names[0] == RuleAll {
		return r.rules, nil
	}
	var selected []Rule
	for _, name := range names {
		found := false
		for _, rule := range r.rules {
			if rule.Name == name {
				selected = append(selected, rule)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown rule: %s", name)
		}
	}
	return selected, nil
}
