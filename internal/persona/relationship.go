package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Stage buckets how established the relationship with the user is.
type Stage string

const (
	StageEarly Stage = "early"
	StageMid   Stage = "developing"
	StageDeep  Stage = "deep"
)

// Stage thresholds.
const (
	midExchanges  = 20
	deepExchanges = 150
	deepIntimacy  = 40.0
	maxIntimacy   = 100.0
)

// Intimacy deltas per exchange.
const (
	intimacyBase     = 0.1
	intimacyPersonal = 0.5
)

// Milestone marks a point the relationship passed.
type Milestone struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

var exchangeMilestones = []struct {
	count int
	name  string
}{
	{10, "getting acquainted"},
	{50, "regular conversations"},
	{200, "long-standing companionship"},
}

type relationshipState struct {
	Exchanges  int         `json:"exchanges"`
	Intimacy   float64     `json:"intimacy"`
	FirstSeen  time.Time   `json:"first_seen"`
	LastSeen   time.Time   `json:"last_seen"`
	Milestones []Milestone `json:"milestones"`
}

// Summary is a read-only snapshot for prompt building.
type Summary struct {
	Exchanges  int
	Intimacy   float64
	Stage      Stage
	Milestones []Milestone
}

// intimateMarkers bump the intimacy delta when the user shares something
// personal.
var intimateMarkers = []string{
	"i feel", "i felt", "i love", "i hate", "i'm afraid",
	"my family", "my dream", "my biggest", "to be honest",
	"i've never told", "between us",
}

// Relationship tracks conversational closeness with the user, persisted as
// JSON. Safe for concurrent use; updated only from post-processing.
type Relationship struct {
	path string
	log  *slog.Logger

	mu    sync.Mutex
	state relationshipState
}

// OpenRelationship loads the relationship file at path. Missing or corrupt
// state degrades to a fresh relationship.
func OpenRelationship(path string, log *slog.Logger) *Relationship {
	if log == nil {
		log = slog.Default()
	}
	r := &Relationship{path: path, log: log}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r
	case err != nil:
		log.Warn("relationship state unreadable, starting fresh", "path", path, "error", err)
		return r
	}
	if err := json.Unmarshal(data, &r.state); err != nil {
		log.Warn("relationship state corrupt, starting fresh", "path", path, "error", err)
		r.state = relationshipState{}
	}
	return r
}

// RecordExchange registers one completed user/assistant exchange and
// persists the updated state.
func (r *Relationship) RecordExchange(userText string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.FirstSeen.IsZero() {
		r.state.FirstSeen = now
	}
	r.state.LastSeen = now
	r.state.Exchanges++

	delta := intimacyBase
	lower := strings.ToLower(userText)
	for _, m := range intimateMarkers {
		if strings.Contains(lower, m) {
			delta = intimacyPersonal
			break
		}
	}
	r.state.Intimacy += delta
	if r.state.Intimacy > maxIntimacy {
		r.state.Intimacy = maxIntimacy
	}

	for _, m := range exchangeMilestones {
		if r.state.Exchanges == m.count {
			r.state.Milestones = append(r.state.Milestones, Milestone{Name: m.name, At: now})
			r.log.Info("relationship milestone reached", "milestone", m.name, "exchanges", m.count)
		}
	}

	return r.save()
}

// save writes the state atomically. Caller holds r.mu.
func (r *Relationship) save() error {
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Snapshot returns the current state for prompt building.
func (r *Relationship) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := make([]Milestone, len(r.state.Milestones))
	copy(ms, r.state.Milestones)
	return Summary{
		Exchanges:  r.state.Exchanges,
		Intimacy:   r.state.Intimacy,
		Stage:      stageOf(r.state),
		Milestones: ms,
	}
}

func stageOf(s relationshipState) Stage {
	switch {
	case s.Exchanges >= deepExchanges && s.Intimacy >= deepIntimacy:
		return StageDeep
	case s.Exchanges >= midExchanges:
		return StageMid
	default:
		return StageEarly
	}
}

// ContextLine renders the relationship as one system-prompt sentence.
func (s Summary) ContextLine() string {
	switch s.Stage {
	case StageDeep:
		return fmt.Sprintf("You two go way back: %d conversations shared, and a deep mutual trust. Speak with the ease of an old friend.", s.Exchanges)
	case StageMid:
		return fmt.Sprintf("You know this person fairly well after %d conversations. Be warm and familiar without overreaching.", s.Exchanges)
	default:
		return "You are still getting to know this person. Be friendly, curious, and a little reserved."
	}
}
