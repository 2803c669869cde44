package rag

import "testing"

func TestIsKnowledgeQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"what is the capital of Mongolia?", true},
		{"how does a heat pump work", true},
		{"tell me about the Ming dynasty", true},
		{"explain quantum tunneling", true},
		{"according to the manual, which port is it?", true},
		{"can you look up the release date", true},
		{"hey, how's it going?", false},
		{"i had a rough day", false},
		{"do you remember what I said about my sister?", false},
		{"what is my favorite color?", false},
		{"we talked about this yesterday, what is it called?", false},
		{"", false},
		{"sounds good!", false},
	}
	for _, tt := range tests {
		if got := IsKnowledgeQuery(tt.text); got != tt.want {
			t.Errorf("IsKnowledgeQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
