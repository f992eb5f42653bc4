package memory

import (
	"regexp"
	"strings"
)

// Extractor derives profile facts from a single turn of user text.
// Implementations must be pure over their inputs: no match means the
// profile comes back unchanged, and re-extracting the same text against
// the resulting profile is a no-op. An LLM-backed extractor may
// substitute behind this contract.
type Extractor interface {
	Extract(profile Profile, text string) Profile
}

// RuleExtractor applies a fixed, ordered set of case-insensitive
// pattern rules: a name rule ("my name is X", falling back to
// "I'm X" / "I am X"), a likes rule ("I like/love/prefer X",
// repeatable), and a tools rule ("I use/work with X", repeatable).
// Captured values end at clause punctuation or at a coordinating
// "and"/"but", and are trimmed of surrounding whitespace.
type RuleExtractor struct{}

// Compile-time interface check.
var _ Extractor = RuleExtractor{}

// The likes/tools captures are lazy with an explicit terminator so that
// several occurrences inside one clause each match separately
// ("I use Go and I work with SQLite" yields both Go and SQLite).
var (
	nameRule     = regexp.MustCompile(`(?i)\bmy name is\s+([a-zA-Z][a-zA-Z ]*)`)
	nameFallback = regexp.MustCompile(`(?i)\b(?:i'm|i am)\s+([a-zA-Z][a-zA-Z ]*)`)
	likesRule    = regexp.MustCompile(`(?i)\bi (?:like|love|prefer)\s+([^,.!?\n]+?)(?:\s+(?:and|but)\b|[,.!?\n]|$)`)
	toolsRule    = regexp.MustCompile(`(?i)\bi (?:use|work with)\s+([^,.!?\n]+?)(?:\s+(?:and|but)\b|[,.!?\n]|$)`)
)

// Extract applies the rules to text and returns the updated profile.
// The name rules overwrite any prior name; likes and tools accumulate
// as sorted sets. Absence of a match is normal control flow.
func (RuleExtractor) Extract(profile Profile, text string) Profile {
	p := profile.Clone()

	if name, ok := matchName(text); ok {
		p.Name = name
	}

	for _, m := range likesRule.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			p.Likes = insertSorted(p.Likes, v)
		}
	}

	for _, m := range toolsRule.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			p.Tools = insertSorted(p.Tools, v)
		}
	}

	return p
}

// matchName runs the name rules in priority order; the first rule that
// matches wins even when the fallback would also match.
func matchName(text string) (string, bool) {
	for _, rule := range []*regexp.Regexp{nameRule, nameFallback} {
		if m := rule.FindStringSubmatch(text); m != nil {
			if v := clipClause(m[1]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// clipClause cuts a captured name at the first coordinating conjunction
// ("my name is Rob and I like Go" extracts as just "Rob").
func clipClause(s string) string {
	lower := strings.ToLower(s)
	cut := len(s)
	for _, sep := range []string{" and ", " but "} {
		if i := strings.Index(lower, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

// NopExtractor disables profile extraction.
type NopExtractor struct{}

// Compile-time interface check.
var _ Extractor = NopExtractor{}

// Extract returns the profile unchanged.
func (NopExtractor) Extract(profile Profile, _ string) Profile {
	return profile
}
