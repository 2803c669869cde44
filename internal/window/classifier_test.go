package window

import (
	"testing"
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

func msgAt(text string, ts time.Time) memory.Message {
	m := memory.NewMessage(memory.RoleUser, text, ts)
	return m
}

func TestClassifyTiers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(30*time.Minute, 6*time.Hour)

	msgs := []memory.Message{
		msgAt("archive", now.Add(-7*time.Hour)),
		msgAt("medium", now.Add(-2*time.Hour)),
		msgAt("recent", now.Add(-5*time.Minute)),
	}
	tiers := c.Classify(msgs, now)

	if len(tiers.Recent) != 1 || tiers.Recent[0].Text != "recent" {
		t.Errorf("Recent = %v", tiers.Recent)
	}
	if len(tiers.Medium) != 1 || tiers.Medium[0].Text != "medium" {
		t.Errorf("Medium = %v", tiers.Medium)
	}
	if len(tiers.Archive) != 1 || tiers.Archive[0].Text != "archive" {
		t.Errorf("Archive = %v", tiers.Archive)
	}
}

func TestClassifyIsPartition(t *testing.T) {
	now := time.Now()
	c := New(0, 0)
	var msgs []memory.Message
	for i := 0; i < 50; i++ {
		msgs = append(msgs, msgAt("m", now.Add(-time.Duration(i)*17*time.Minute)))
	}
	tiers := c.Classify(msgs, now)
	if tiers.Total() != len(msgs) {
		t.Fatalf("partition lost messages: %d classified, %d in", tiers.Total(), len(msgs))
	}
}

func TestClassifyBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(30*time.Minute, 6*time.Hour)

	tests := []struct {
		name string
		age  time.Duration
		tier string
	}{
		{"just under recent cutoff", 30*time.Minute - time.Second, "recent"},
		{"exactly recent cutoff", 30 * time.Minute, "medium"},
		{"just under medium cutoff", 6*time.Hour - time.Second, "medium"},
		{"exactly medium cutoff", 6 * time.Hour, "archive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiers := c.Classify([]memory.Message{msgAt("m", now.Add(-tt.age))}, now)
			got := ""
			switch {
			case len(tiers.Recent) == 1:
				got = "recent"
			case len(tiers.Medium) == 1:
				got = "medium"
			case len(tiers.Archive) == 1:
				got = "archive"
			}
			if got != tt.tier {
				t.Errorf("age %v classified as %q, want %q", tt.age, got, tt.tier)
			}
		})
	}
}

func TestClassifyMonotone(t *testing.T) {
	// Increasing age must never move a message to a newer tier.
	now := time.Now()
	c := New(30*time.Minute, 6*time.Hour)
	rank := func(age time.Duration) int {
		tiers := c.Classify([]memory.Message{msgAt("m", now.Add(-age))}, now)
		switch {
		case len(tiers.Recent) == 1:
			return 0
		case len(tiers.Medium) == 1:
			return 1
		default:
			return 2
		}
	}
	prev := 0
	for age := time.Duration(0); age <= 8*time.Hour; age += 7 * time.Minute {
		r := rank(age)
		if r < prev {
			t.Fatalf("tier went newer as age grew: age %v rank %d after rank %d", age, r, prev)
		}
		prev = r
	}
}

func TestClassifyZeroTimestampIsRecent(t *testing.T) {
	c := New(0, 0)
	tiers := c.Classify([]memory.Message{{Text: "no clock"}}, time.Now())
	if len(tiers.Recent) != 1 {
		t.Fatal("zero-timestamp message not treated as recent")
	}
}

func TestClassifyAllSameTier(t *testing.T) {
	now := time.Now()
	c := New(0, 0)
	var msgs []memory.Message
	for i := 0; i < 6; i++ {
		msgs = append(msgs, msgAt("m", now.Add(-time.Duration(i)*time.Minute)))
	}
	tiers := c.Classify(msgs, now)
	if len(tiers.Recent) != 6 || len(tiers.Medium) != 0 || len(tiers.Archive) != 0 {
		t.Fatalf("six fresh messages: recent=%d medium=%d archive=%d",
			len(tiers.Recent), len(tiers.Medium), len(tiers.Archive))
	}
	// Order inside the tier follows input order.
	for i := 1; i < len(tiers.Recent); i++ {
		if tiers.Recent[i].Timestamp.After(tiers.Recent[i-1].Timestamp) {
			t.Fatal("input order not preserved within tier")
		}
	}
}
