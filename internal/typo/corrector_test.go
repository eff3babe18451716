package typo_test

import (
	"strings"
	"testing"

	"github.com/ldrpitr/samvaad/internal/typo"
)

func TestCorrect_ShortTokensPassThrough(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	for _, tok := range []string{"a", "an", "fee", "fes", "the", "123"} {
		if got := c.Correct(tok); got != tok {
			t.Errorf("Correct(%q) = %q, want unchanged", tok, got)
		}
	}
}

func TestCorrect_ExactMatchUnchanged(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	for _, tok := range []string{"admission", "document", "semester", "exam"} {
		if got := c.Correct(tok); got != tok {
			t.Errorf("Correct(%q) = %q, want unchanged", tok, got)
		}
	}
}

func TestCorrect_SingleEditTypos(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	tests := []struct {
		in   string
		want string
	}{
		{"admissionn", "admission"}, // extra letter
		{"documnet", "documnet"},    // transposition is two edits; left alone
		{"documen", "document"},     // missing letter
		{"semestar", "semester"},    // substitution
		{"colege", "college"},       // missing letter
		{"examm", "exam"},           // extra letter
	}
	for _, tt := range tests {
		if got := c.Correct(tt.in); got != tt.want {
			t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCorrect_FarTokensUnchanged(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	for _, tok := range []string{"zebra", "quantum", "xylophone", "9999"} {
		if got := c.Correct(tok); got != tok {
			t.Errorf("Correct(%q) = %q, want unchanged (distance >= 2 everywhere)", tok, got)
		}
	}
}

func TestCorrect_TokenCountAndOrderPreserved(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	inputs := []string{
		"addmission documen deadline",
		"what are the colege timings",
		"fee  structure", // double space yields an empty token, still preserved
	}
	for _, in := range inputs {
		got := c.Correct(in)
		if len(strings.Split(got, " ")) != len(strings.Split(in, " ")) {
			t.Errorf("Correct(%q) = %q: token count changed", in, got)
		}
	}
}

func TestCorrect_Idempotent(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	inputs := []string{
		"admissionn documen",
		"semestar exam timetible",
		"hello world",
	}
	for _, in := range inputs {
		once := c.Correct(in)
		if twice := c.Correct(once); twice != once {
			t.Errorf("Correct not idempotent on %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestCorrect_FirstMatchWinsTies(t *testing.T) {
	t.Parallel()
	// "cart" is distance 1 from both entries; the first declared entry wins.
	c := typo.New([]string{"card", "cart", "care"})

	if got := c.Correct("carta"); got != "cart" {
		// distance("carta","card")=2, ("carta","cart")=1 — unambiguous
		t.Errorf("Correct(%q) = %q, want %q", "carta", got, "cart")
	}
	if got := c.Correct("carx"); got != "card" {
		// distance 1 from all three; declaration order breaks the tie
		t.Errorf("Correct(%q) = %q, want first declared entry %q", "carx", got, "card")
	}
}

func TestCorrect_CaseInsensitive(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	// Uppercase exact matches normalise to the dictionary spelling.
	if got := c.Correct("Admission"); got != "admission" {
		t.Errorf("Correct(%q) = %q, want %q", "Admission", got, "admission")
	}
}

func TestCorrect_NearMissPhrase(t *testing.T) {
	t.Parallel()
	c := typo.New(typo.DefaultDictionary)

	// Each token is one edit away from its dictionary match.
	if got := c.Correct("admision documen"); got != "admission document" {
		t.Errorf("Correct(%q) = %q, want %q", "admision documen", got, "admission document")
	}
	// Transpositions cost two edits under plain Levenshtein and are left alone.
	if got := c.Correct("documnet"); got != "documnet" {
		t.Errorf("Correct(%q) = %q, want unchanged", "documnet", got)
	}
}

func TestDistance_Properties(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"admission", "addmision"},
		{"fee", "free"},
		{"", "abc"},
		{"kitten", "sitting"},
	}
	for _, p := range pairs {
		if typo.Distance(p[0], p[1]) != typo.Distance(p[1], p[0]) {
			t.Errorf("Distance(%q, %q) not symmetric", p[0], p[1])
		}
	}
	for _, s := range []string{"", "a", "admission"} {
		if d := typo.Distance(s, s); d != 0 {
			t.Errorf("Distance(%q, %q) = %d, want 0", s, s, d)
		}
	}
	if d := typo.Distance("kitten", "sitting"); d != 3 {
		t.Errorf("Distance(kitten, sitting) = %d, want 3", d)
	}
}

func TestCorrect_CustomThresholds(t *testing.T) {
	t.Parallel()
	c := typo.New([]string{"semester"}, typo.WithMinTokenLength(6), typo.WithMaxDistance(3))

	if got := c.Correct("semstr"); got != "semester" {
		t.Errorf("Correct(%q) = %q, want %q with relaxed distance", "semstr", got, "semester")
	}
	if got := c.Correct("semst"); got != "semst" {
		t.Errorf("Correct(%q) = %q, want unchanged below min length", "semst", got)
	}
}
