package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how responses are rendered
type OutputFormat string

const (
	// JSONOutput renders the response as indented JSON
	JSONOutput OutputFormat = "json"
	// YAMLOutput renders the response as YAML
	YAMLOutput OutputFormat = "yaml"
	// HumanOutput renders a readable summary
	HumanOutput OutputFormat = "human"
)

// FormatResponse renders v in the requested format.
func FormatResponse(v interface{}, format OutputFormat) (string, error) {
	switch format {
	case JSONOutput, "":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal response: %w", err)
		}
		return string(data), nil
	case YAMLOutput:
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal response: %w", err)
		}
		return string(data), nil
	case HumanOutput:
		return formatHuman(v), nil
	}
	return "", fmt.Errorf("unknown output format: %s", format)
}

func formatHuman(v interface{}) string {
	resp, ok := v.(*SearchResponseCLI)
	if !ok {
		data, _ := json.MarshalIndent(v, "", "  ")
		return string(data)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d candidate(s)\n", resp.VulnerabilityID, len(resp.Commits))
	if resp.HasFixingCommit {
		b.WriteString("Fixing commit confirmed from advisory references\n")
	}
	for i, c := range resp.Commits {
		fmt.Fprintf(&b, "%3d. %s  score=%.0f", i+1, c.CommitID, c.Score)
		if len(c.Tags) > 0 {
			fmt.Fprintf(&b, "  tags=%s", strings.Join(c.Tags, ","))
		}
		if len(c.MatchedRules) > 0 {
			fmt.Fprintf(&b, "  rules=%s", strings.Join(c.MatchedRules, ","))
		}
		b.WriteByte('\n')
		if c.Subject != "" {
			fmt.Fprintf(&b, "     %s\n", c.Subject)
		}
		for _, t := range c.Twins {
			fmt.Fprintf(&b, "     twin: %s (%s)\n", t.CommitID, t.Tag)
		}
	}
	return b.String()
}
