package note

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Query is a composable, side-effect-free filter over Notes. All present
// predicates combine with AND; the Search predicate is itself an OR of a
// title substring test and a transcription substring test.
type Query struct {
	// FolderID matches Notes tagged with exactly this folder
	FolderID *string

	// ServerID matches the Note bound to this remote identity
	ServerID *ServerID

	// Search matches Notes whose title OR transcription contains the term,
	// case-insensitively
	Search string

	// HasLocation filters on location presence
	HasLocation *bool

	// CityName / StreetName match resolved place names by substring,
	// case-insensitively
	CityName   string
	StreetName string
}

// IsEmpty reports whether the query filters nothing
func (q Query) IsEmpty() bool {
	return q.FolderID == nil && q.ServerID == nil && q.Search == "" &&
		q.HasLocation == nil && q.CityName == "" && q.StreetName == ""
}

// Matches evaluates the query against a single Note
func (q Query) Matches(n *Note) bool {
	if q.FolderID != nil && n.FolderID() != *q.FolderID {
		return false
	}
	if q.ServerID != nil && n.ServerID() != *q.ServerID {
		return false
	}
	if q.HasLocation != nil {
		if *q.HasLocation != (n.Location() != nil) {
			return false
		}
	}
	if q.CityName != "" {
		loc := n.Location()
		if loc == nil || !containsFold(loc.CityName(), q.CityName) {
			return false
		}
	}
	if q.StreetName != "" {
		loc := n.Location()
		if loc == nil || !containsFold(loc.StreetName(), q.StreetName) {
			return false
		}
	}
	if q.Search != "" {
		if !containsFold(n.Title(), q.Search) && !containsFold(n.Transcription(), q.Search) {
			return false
		}
	}
	return true
}

var searchCaser = cases.Fold()

// NormalizeTerm canonicalizes a search term so that SQL LIKE comparisons and
// in-memory matching agree on composed/decomposed and cased input
func NormalizeTerm(s string) string {
	return searchCaser.String(norm.NFC.String(s))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(NormalizeTerm(haystack), NormalizeTerm(needle))
}
