package match

import (
	"reflect"
	"testing"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     bool
	}{
		{"whole word", "Dentist Appointment", []string{"dentist"}, true},
		{"prefix of longer word", "Dentistry Conference", []string{"dentist"}, false},
		{"no keywords", "Dentist Appointment", nil, false},
		{"empty text", "", []string{"dentist"}, false},
		{"any keyword", "Team standup", []string{"dentist", "standup"}, true},
		{"case insensitive keyword", "yoga class", []string{"YOGA"}, true},
		{"punctuation boundary", "Call: dentist, 3pm", []string{"dentist"}, true},
		{"metacharacters are literal", "Review a.b notes", []string{"a.b"}, true},
		{"dot does not act as wildcard", "Review axb notes", []string{"a.b"}, false},
		{"multi word keyword", "Weekly Team Sync", []string{"team sync"}, true},
		{"blank keyword ignored", "anything", []string{"  "}, false},
		{"non-ascii trailing letter", "Café meeting", []string{"café"}, true},
		{"non-ascii keyword inside longer word", "Cafés", []string{"café"}, false},
		{"non-ascii keyword, different case", "ZOË birthday", []string{"zoë"}, true},
		{"non-ascii letter before keyword", "Éteam sync", []string{"team"}, false},
		{"keyword at end of text", "Lunch at café", []string{"café"}, true},
		{"combined alternatives keep edges", "Cafés and Zoë", []string{"café", "zoë"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.text, tt.keywords); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, expected %v", tt.text, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestMatcher_Hits(t *testing.T) {
	m := NewMatcher([]string{"gym", "dentist", "yoga"})

	got := m.Hits("Yoga then gym")
	expected := []string{"gym", "yoga"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected hits %v, got %v", expected, got)
	}

	if m.Len() != 3 {
		t.Errorf("Expected 3 keywords, got %d", m.Len())
	}
}
