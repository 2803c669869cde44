package entity

import (
	"testing"
)

func TestExtractProperNouns(t *testing.T) {
	got := Extract("I told Sarah about the trip to New Zealand last week")
	want := map[string]bool{"Sarah": true, "New Zealand": true}
	for _, e := range got {
		delete(want, e)
	}
	if len(want) != 0 {
		t.Errorf("Extract missed entities %v (got %v)", want, got)
	}
}

func TestExtractAcronymsAndModels(t *testing.T) {
	got := Extract("my GPU is an RTX4090 and I work at NASA on GPT-4o evals")
	found := make(map[string]bool)
	for _, e := range got {
		found[e] = true
	}
	for _, want := range []string{"RTX4090", "NASA", "GPT-4o"} {
		if !found[want] {
			t.Errorf("Extract missing %q in %v", want, got)
		}
	}
}

func TestExtractFiltersStopwords(t *testing.T) {
	got := Extract("The dog ran. What happened? I saw it.")
	for _, e := range got {
		if e == "The" || e == "What" || e == "I" {
			t.Errorf("stopword %q survived extraction", e)
		}
	}
}

func TestExtractDeduplicates(t *testing.T) {
	got := Extract("Miso is great. I love Miso. MISO!")
	count := 0
	for _, e := range got {
		if e == "Miso" || e == "MISO" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one Miso entity, got %d in %v", count, got)
	}
}

func TestExtractEmpty(t *testing.T) {
	if got := Extract(""); got != nil {
		t.Errorf("Extract(\"\") = %v, want nil", got)
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want int
	}{
		{"disjoint", []string{"Sarah"}, []string{"Miso"}, 0},
		{"case insensitive", []string{"miso", "NASA"}, []string{"Miso"}, 1},
		{"both empty", nil, nil, 0},
		{"two matches", []string{"A1", "B2", "C3"}, []string{"b2", "c3", "d4"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlap(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlap(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
