package advisory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"prospector/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
}

func TestExtractCommitRefs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{
			name: "github commit link",
			url:  "https://github.com/apache/logging-log4j2/commit/7fe72d6",
			want: []string{"7fe72d6"},
		},
		{
			name: "full hash",
			url:  "https://github.com/org/repo/commit/c77b3cb2e6e56b78eed2a0f3b0f3509fb0e880e2",
			want: []string{"c77b3cb2e6e56b78eed2a0f3b0f3509fb0e880e2"},
		},
		{
			name: "plural path segment",
			url:  "https://bitbucket.org/org/repo/commits/abc123f",
			want: []string{"abc123f"},
		},
		{name: "issue link", url: "https://github.com/org/repo/issues/42", want: nil},
		{name: "too short", url: "https://github.com/org/repo/commit/abc12", want: nil},
		{name: "not hex", url: "https://github.com/org/repo/commit/release-notes", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCommitRefs(tt.url); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCommitRefs(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "rfc3339", input: "2021-12-10T10:15:09Z"},
		{name: "nvd layout", input: "2021-12-10T10:15:09.143"},
		{name: "date only", input: "2021-12-10"},
		{name: "garbage", input: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := parseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDate(%q) succeeded", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDate(%q) failed: %v", tt.input, err)
			}
			if ts <= 0 {
				t.Errorf("timestamp = %d", ts)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	desc := "Apache Log4j2 JNDI features used in configuration do not " +
		"protect against attacker controlled LDAP endpoints. An attacker " +
		"who can control log messages can execute arbitrary code."
	got := extractKeywords(desc)

	want := map[string]bool{"log4j2": true, "jndi": true, "ldap": true}
	found := 0
	for _, kw := range got {
		if want[kw] {
			found++
		}
	}
	if found != len(want) {
		t.Errorf("keywords = %v, missing some of %v", got, want)
	}
	for _, kw := range got {
		if kw == "attacker" || kw == "the" {
			t.Errorf("stopword %q leaked into keywords", kw)
		}
	}
}

func TestExtensionHints(t *testing.T) {
	got := extensionHints([]string{
		"core/src/JndiLookup.java",
		"core/src/JndiManager.java",
		"pom.xml",
		"LICENSE",
	})
	if !reflect.DeepEqual(got, []string{"java", "xml"}) {
		t.Errorf("extensionHints = %v, want [java xml]", got)
	}
}

func TestBuildOffline(t *testing.T) {
	rec := Build(context.Background(), BuildOptions{
		VulnerabilityID: "CVE-2021-44228",
		Description:     "JNDI lookup allows remote code execution",
		PublishedDate:   "2021-12-10",
		ModifiedFiles:   []string{"JndiLookup.java"},
	}, testLogger())

	if rec.VulnerabilityID != "CVE-2021-44228" {
		t.Errorf("VulnerabilityID = %q", rec.VulnerabilityID)
	}
	if rec.PublishedTimestamp == 0 {
		t.Error("publication date not parsed")
	}
	if len(rec.Keywords) == 0 {
		t.Error("keywords not derived from the description")
	}
	if !reflect.DeepEqual(rec.FileExtensions, []string{"java"}) {
		t.Errorf("FileExtensions = %v", rec.FileExtensions)
	}
}

func TestBuildBadDateFailsSoft(t *testing.T) {
	rec := Build(context.Background(), BuildOptions{
		VulnerabilityID: "CVE-2021-0001",
		PublishedDate:   "not a date",
	}, testLogger())
	if rec.PublishedTimestamp != 0 {
		t.Errorf("PublishedTimestamp = %d, want 0", rec.PublishedTimestamp)
	}
}

func TestBuildFromNvd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cveId"); got != "CVE-2021-44228" {
			t.Errorf("cveId = %q", got)
		}
		resp := map[string]interface{}{
			"vulnerabilities": []map[string]interface{}{
				{
					"cve": map[string]interface{}{
						"published": "2021-12-10T10:15:09.143",
						"descriptions": []map[string]string{
							{"lang": "en", "value": "JNDI features allow remote code execution"},
						},
						"references": []map[string]string{
							{"url": "https://github.com/apache/logging-log4j2/commit/7fe72d6"},
							{"url": "https://github.com/apache/logging-log4j2/commit/7fe72d6"},
							{"url": "https://example.com/advisory"},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	rec := Build(context.Background(), BuildOptions{
		VulnerabilityID: "CVE-2021-44228",
		NvdEndpoint:     server.URL,
		UseNvd:          true,
		FetchReferences: true,
	}, testLogger())

	if rec.Description == "" {
		t.Error("description not taken from the database")
	}
	if rec.PublishedTimestamp == 0 {
		t.Error("publication date not taken from the database")
	}
	if !reflect.DeepEqual(rec.FixingCommits, []string{"7fe72d6"}) {
		t.Errorf("FixingCommits = %v, want deduplicated [7fe72d6]", rec.FixingCommits)
	}
}

func TestBuildNvdUnreachableFailsSoft(t *testing.T) {
	rec := Build(context.Background(), BuildOptions{
		VulnerabilityID: "CVE-2021-0001",
		NvdEndpoint:     "http://127.0.0.1:1",
		UseNvd:          true,
	}, testLogger())
	if rec == nil || rec.VulnerabilityID != "CVE-2021-0001" {
		t.Fatal("record not built despite database failure")
	}
}
