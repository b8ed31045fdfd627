package repository

import (
	"strconv"
	"strings"
)

// TagPair is the resolved bound of a version interval. Both fields empty
// means the interval could not be mapped onto the repository's tags; the
// caller must treat that as fatal rather than scanning full history.
type TagPair struct {
	Prev string
	Next string
}

// IsEmpty reports whether neither bound resolved.
func (p TagPair) IsEmpty() bool {
	return p.Prev == "" && p.Next == ""
}

// ResolveTagPair maps a user-supplied version interval ("2.14.1:2.15.0",
// possibly open-ended) onto the repository's tag list. Resolution is
// version-aware, not lexical: release tags come prefixed and decorated in
// the wild (v2.15.0, rel/2.15.0, REL_2_15_0, log4j-2.15.0) and frequently
// are not valid semver. A bound without an exact match falls back to the
// nearest enclosing tag: greatest tag at or below for the lower bound,
// smallest tag at or above for the upper bound.
func ResolveTagPair(tags []string, interval string) TagPair {
	interval = strings.TrimSpace(interval)
	if interval == "" || len(tags) == 0 {
		return TagPair{}
	}

	prevVersion, nextVersion := splitInterval(interval)

	var pair TagPair
	if prevVersion != "" {
		pair.Prev = resolveTag(tags, prevVersion, false)
	}
	if nextVersion != "" {
		pair.Next = resolveTag(tags, nextVersion, true)
	}
	return pair
}

// splitInterval splits "a:b" into its bounds. A bare value with no colon
// is treated as the upper bound, the release the fix is claimed to be in.
func splitInterval(interval string) (string, string) {
	i := strings.IndexByte(interval, ':')
	if i < 0 {
		return "", interval
	}
	return strings.TrimSpace(interval[:i]), strings.TrimSpace(interval[i+1:])
}

// resolveTag finds the tag matching version, or the nearest enclosing one.
// upper selects the fallback direction.
func resolveTag(tags []string, version string, upper bool) string {
	want := versionTokens(version)
	if len(want) == 0 {
		return ""
	}

	// Exact: a tag whose version component equals the requested one.
	for _, tag := range tags {
		if tag == version {
			return tag
		}
	}
	for _, tag := range tags {
		if tokensEqual(versionTokens(tag), want) {
			return tag
		}
	}

	// Nearest enclosing.
	best := ""
	var bestTokens []token
	for _, tag := range tags {
		got := versionTokens(tag)
		if len(got) == 0 {
			continue
		}
		cmp := compareTokens(got, want)
		if upper {
			if cmp < 0 {
				continue
			}
			if best == "" || compareTokens(got, bestTokens) < 0 {
				best, bestTokens = tag, got
			}
		} else {
			if cmp > 0 {
				continue
			}
			if best == "" || compareTokens(got, bestTokens) > 0 {
				best, bestTokens = tag, got
			}
		}
	}
	return best
}

// token is one run of a version string, numeric or not.
type token struct {
	num     int
	text    string
	numeric bool
}

// versionTokens extracts the version component of a tag or version string
// as comparable tokens. Leading decoration (v, rel/, REL_, log4j-) is
// dropped: the version starts at the first digit following a decoration
// separator, or at the first digit when there is no such separator. The
// separator rule keeps digits inside project names out of the version.
func versionTokens(s string) []token {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		if start < 0 {
			start = i
		}
		if i == 0 || strings.IndexByte("-_/ ", s[i-1]) >= 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	s = s[start:]

	var out []token
	var run []byte
	runNumeric := false

	flush := func() {
		if len(run) == 0 {
			return
		}
		t := token{text: string(run), numeric: runNumeric}
		if runNumeric {
			t.num, _ = strconv.Atoi(t.text)
		}
		out = append(out, t)
		run = run[:0]
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			if len(run) > 0 && !runNumeric {
				flush()
			}
			runNumeric = true
			run = append(run, c)
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			if len(run) > 0 && runNumeric {
				flush()
			}
			runNumeric = false
			run = append(run, c)
		default:
			// separator
			flush()
		}
	}
	flush()
	return out
}

func tokensEqual(a, b []token) bool {
	return compareTokens(a, b) == 0
}

// compareTokens orders token sequences: numeric tokens compare by value,
// mixed numeric/text treats the numeric side as greater, text compares
// lexically. A shorter sequence that is a prefix of a longer one compares
// lower.
func compareTokens(a, b []token) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		at, bt := a[i], b[i]
		switch {
		case at.numeric && bt.numeric:
			if at.num != bt.num {
				if at.num < bt.num {
					return -1
				}
				return 1
			}
		case at.numeric && !bt.numeric:
			return 1
		case !at.numeric && bt.numeric:
			return -1
		default:
			if at.text != bt.text {
				if at.text < bt.text {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
