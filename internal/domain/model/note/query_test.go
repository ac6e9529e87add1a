package note

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryFixture(t *testing.T) *Note {
	t.Helper()
	n, err := NewNote("work", "Standup Notes", "take.wav", 30, time.Now())
	require.NoError(t, err)
	n.SetTranscription("we discussed the Q3 röadmap")
	loc := ReconstructLocation(59.33, 18.07, "Stockholm", "Drottninggatan")
	n.SetLocation(&loc)
	return n
}

func TestQueryIsEmpty(t *testing.T) {
	assert.True(t, Query{}.IsEmpty())

	folder := "work"
	assert.False(t, Query{FolderID: &folder}.IsEmpty())
	assert.False(t, Query{Search: "x"}.IsEmpty())
}

func TestQueryMatches(t *testing.T) {
	n := queryFixture(t)
	folder := "work"
	other := "personal"
	yes, no := true, false

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty matches everything", Query{}, true},
		{"folder match", Query{FolderID: &folder}, true},
		{"folder mismatch", Query{FolderID: &other}, false},
		{"search hits title case-insensitively", Query{Search: "standup"}, true},
		{"search hits transcription", Query{Search: "Q3"}, true},
		{"search miss", Query{Search: "retrospective"}, false},
		{"has location", Query{HasLocation: &yes}, true},
		{"wants no location", Query{HasLocation: &no}, false},
		{"city substring", Query{CityName: "stock"}, true},
		{"street substring", Query{StreetName: "drottning"}, true},
		{"street mismatch", Query{StreetName: "kungsgatan"}, false},
		{"all predicates AND", Query{FolderID: &folder, Search: "standup", CityName: "Stockholm"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(n))
		})
	}
}

func TestQueryMatchesDiacritics(t *testing.T) {
	n := queryFixture(t)

	// decomposed "ö" in the term matches the composed form in the text
	assert.True(t, Query{Search: "röadmap"}.Matches(n))
}

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, NormalizeTerm("Röadmap"), NormalizeTerm("RÖADMAP"))
	assert.Equal(t, "abc", NormalizeTerm("ABC"))
}
