// Package memory implements the conversation-memory engine: an
// append-only turn log per session, a bounded context window, regex-based
// profile extraction, a rolling summary, and a context assembler. Profile
// and summary are derived caches — replaying the turn log from empty
// state reproduces both, so persisting turns alone is sufficient for
// recovery.
package memory

import (
	"slices"
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

// Turn roles. recall only logs the two conversational roles; system
// prompts live on the engine configuration, never in the turn log.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Immutable once appended;
// Seq is assigned by the store at append time and is monotonic per session.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds structured facts extracted from a user's turns.
// It is a cache over the turn log, rebuildable by replay.
// Likes and Tools are kept sorted and duplicate-free.
type Profile struct {
	Name  string   `json:"name,omitempty"`
	Likes []string `json:"likes,omitempty"`
	Tools []string `json:"tools,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	return Profile{
		Name:  p.Name,
		Likes: slices.Clone(p.Likes),
		Tools: slices.Clone(p.Tools),
	}
}

// Equal reports whether two profiles carry identical facts.
func (p Profile) Equal(other Profile) bool {
	return p.Name == other.Name &&
		slices.Equal(p.Likes, other.Likes) &&
		slices.Equal(p.Tools, other.Tools)
}

// IsZero reports whether no facts have been extracted yet.
func (p Profile) IsZero() bool {
	return p.Name == "" && len(p.Likes) == 0 && len(p.Tools) == 0
}

// Card renders the profile as a single persona line for prompt assembly.
func (p Profile) Card() string {
	name := p.Name
	if name == "" {
		name = "User"
	}
	return "name: " + name +
		" | likes: " + joinOrDash(p.Likes) +
		" | tools: " + joinOrDash(p.Tools)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// insertSorted adds value to the sorted set, keeping order and uniqueness.
func insertSorted(set []string, value string) []string {
	i, found := slices.BinarySearch(set, value)
	if found {
		return set
	}
	return slices.Insert(set, i, value)
}

// Summary is a bounded-length digest of recent turn history.
// Like Profile, it is a derived cache, never the source of truth.
type Summary struct {
	Text   string `json:"text"`
	MaxLen int    `json:"max_len"`
}
