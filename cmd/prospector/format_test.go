package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleResponse() *SearchResponseCLI {
	return &SearchResponseCLI{
		VulnerabilityID: "CVE-2021-44228",
		Repository:      "https://example.com/org/project",
		RunID:           "run-1",
		Commits: []SearchCommitCLI{
			{
				CommitID:     "abc123",
				Score:        64,
				Subject:      "Fix injection",
				Tags:         []string{"v2.15.0"},
				MatchedRules: []string{"VULN_ID_IN_MESSAGE"},
			},
		},
	}
}

func TestFormatResponseJSON(t *testing.T) {
	out, err := FormatResponse(sampleResponse(), JSONOutput)
	if err != nil {
		t.Fatalf("FormatResponse failed: %v", err)
	}
	var parsed SearchResponseCLI
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.VulnerabilityID != "CVE-2021-44228" || len(parsed.Commits) != 1 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestFormatResponseYAML(t *testing.T) {
	out, err := FormatResponse(sampleResponse(), YAMLOutput)
	if err != nil {
		t.Fatalf("FormatResponse failed: %v", err)
	}
	if !strings.Contains(out, "vulnerabilityId: CVE-2021-44228") {
		t.Errorf("unexpected YAML: %q", out)
	}
}

func TestFormatResponseHuman(t *testing.T) {
	out, err := FormatResponse(sampleResponse(), HumanOutput)
	if err != nil {
		t.Fatalf("FormatResponse failed: %v", err)
	}
	for _, want := range []string{"CVE-2021-44228", "abc123", "Fix injection", "v2.15.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("human output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatResponseUnknownFormat(t *testing.T) {
	if _, err := FormatResponse(sampleResponse(), "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
