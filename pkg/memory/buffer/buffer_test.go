package buffer

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

func makeMsg(i int, ts time.Time) memory.Message {
	return memory.NewMessage(memory.RoleUser, fmt.Sprintf("message %d", i), ts)
}

func TestAppendAndSnapshot(t *testing.T) {
	b := New(10, nil)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !b.Append(makeMsg(i, now.Add(time.Duration(i)*time.Second))) {
			t.Fatalf("Append %d rejected", i)
		}
	}
	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot len = %d, want 3", len(snap))
	}
	for i, msg := range snap {
		if msg.Text != fmt.Sprintf("message %d", i) {
			t.Errorf("snap[%d].Text = %q, out of order", i, msg.Text)
		}
	}
}

func TestFIFOEvictionAtCap(t *testing.T) {
	const cap = 5
	b := New(cap, nil)
	now := time.Now()
	for i := 0; i < cap+3; i++ {
		b.Append(makeMsg(i, now))
		if b.Len() > cap {
			t.Fatalf("Len = %d exceeds cap %d after append %d", b.Len(), cap, i)
		}
	}
	snap := b.Snapshot()
	if len(snap) != cap {
		t.Fatalf("Len = %d, want %d", len(snap), cap)
	}
	// Oldest three were evicted; the survivors are 3..7 in order.
	for i, msg := range snap {
		want := fmt.Sprintf("message %d", i+3)
		if msg.Text != want {
			t.Errorf("snap[%d].Text = %q, want %q", i, msg.Text, want)
		}
	}
}

func TestOversizedMessageRejected(t *testing.T) {
	b := New(10, nil)
	huge := memory.NewMessage(memory.RoleUser, strings.Repeat("x", (OversizeTokenLimit+1)*4), time.Now())
	if b.Append(huge) {
		t.Fatal("oversized message accepted")
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d after rejected append, want 0", b.Len())
	}
	if b.Dirty() != 0 {
		t.Fatalf("Dirty = %d after rejected append, want 0", b.Dirty())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b := New(10, nil)
	b.Append(makeMsg(0, time.Now()))
	snap := b.Snapshot()
	snap[0].Text = "mutated"
	if b.Snapshot()[0].Text == "mutated" {
		t.Fatal("Snapshot shares backing storage with the buffer")
	}
}

func TestDirtyTracking(t *testing.T) {
	b := New(10, nil)
	now := time.Now()
	b.Append(makeMsg(0, now))
	b.Append(makeMsg(1, now))
	if b.Dirty() != 2 {
		t.Fatalf("Dirty = %d, want 2", b.Dirty())
	}
	b.MarkClean()
	if b.Dirty() != 0 {
		t.Fatalf("Dirty after MarkClean = %d, want 0", b.Dirty())
	}
}

func TestDefaultCapFallback(t *testing.T) {
	b := New(0, nil)
	if b.cap != DefaultCap {
		t.Fatalf("cap = %d, want %d", b.cap, DefaultCap)
	}
}
