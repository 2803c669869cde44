// Package manager orchestrates the memory subsystem for one conversation:
// runtime buffer, short-term log, long-term retrieval, formation, and prompt
// assembly behind a single public contract.
//
// All mutable memory state (buffer and short-term log) is guarded by one
// shared [memory.Gate]. The gate is held only for mutations and snapshots,
// never across embedding or model calls: retrieval and assembly operate on a
// snapshot taken under the gate and released before any network I/O.
//
// Post-processing (assistant append, short-term persistence, memory
// formation, relationship update) runs in tracked background tasks that
// [Manager.Close] joins before returning.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadonomaro197-cloud/AiD/internal/formation"
	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/internal/persona"
	"github.com/kadonomaro197-cloud/AiD/internal/prompt"
	"github.com/kadonomaro197-cloud/AiD/internal/retrieval"
	"github.com/kadonomaro197-cloud/AiD/internal/window"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory/buffer"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory/stm"
)

// Stage is the manager's coarse processing state, exposed for health checks
// and debugging.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageIngesting      Stage = "ingesting"
	StageRetrieving     Stage = "retrieving"
	StageAssembling     Stage = "assembling"
	StageAwaitingModel  Stage = "awaiting_model"
	StagePostProcessing Stage = "post_processing"
)

// HydrationTokenLimit is the per-message ceiling for messages loaded from
// the short-term log into the runtime buffer at startup. Larger entries stay
// on disk only.
const HydrationTokenLimit = 500

// Config tunes the manager. Zero values select the defaults.
type Config struct {
	// STMPath is the short-term log file.
	STMPath string

	// BufferCap caps the runtime buffer. Default [buffer.DefaultCap].
	BufferCap int

	// STMLimit caps the short-term log. Default [stm.DefaultLimit].
	STMLimit int

	// SaveTrigger controls short-term persistence. Zero value selects
	// [stm.DefaultSaveTrigger].
	SaveTrigger stm.SaveTrigger

	// AccessorWait bounds how long read-only accessors wait for the gate
	// before returning [memory.ErrMemoryBusy]. Default 250ms.
	AccessorWait time.Duration

	// RetrieveTopK is how many memories a prompt build asks for.
	// Default 6.
	RetrieveTopK int
}

func (c Config) withDefaults() Config {
	if c.SaveTrigger == (stm.SaveTrigger{}) {
		c.SaveTrigger = stm.DefaultSaveTrigger()
	}
	if c.AccessorWait <= 0 {
		c.AccessorWait = 250 * time.Millisecond
	}
	if c.RetrieveTopK <= 0 {
		c.RetrieveTopK = 6
	}
	return c
}

// Deps are the collaborators the manager orchestrates.
type Deps struct {
	Gate         *memory.Gate
	Engine       *retrieval.Engine
	Formation    *formation.Formation
	Relationship *persona.Relationship
	Assembler    *prompt.Assembler
	Classifier   *window.Classifier
	Persona      persona.Persona
}

// Manager is the single entry point to the memory subsystem. Safe for
// concurrent use.
type Manager struct {
	cfg  Config
	deps Deps

	buf    *buffer.Buffer
	stmLog *stm.Log

	stage atomic.Value // Stage

	tasks  sync.WaitGroup
	done   chan struct{}
	closed atomic.Bool

	log     *slog.Logger
	metrics *observe.Metrics
}

// New builds a Manager, loading the short-term log and hydrating the runtime
// buffer with its recent messages. Hydration drops entries above
// [HydrationTokenLimit] tokens from the hot copy; they remain in the log.
// A background ticker handles the elapsed-time half of the save trigger.
func New(deps Deps, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:     cfg,
		deps:    deps,
		buf:     buffer.New(cfg.BufferCap, log),
		stmLog:  stm.Open(cfg.STMPath, cfg.STMLimit, log),
		done:    make(chan struct{}),
		log:     log,
		metrics: observe.DefaultMetrics(),
	}
	m.stage.Store(StageIdle)

	hydrated, dropped := 0, 0
	for _, msg := range m.stmLog.Messages() {
		if msg.TokenCount > HydrationTokenLimit {
			dropped++
			continue
		}
		if m.buf.Append(msg) {
			hydrated++
		}
	}
	m.buf.MarkClean()
	if hydrated > 0 || dropped > 0 {
		log.Info("hydrated runtime buffer from short-term log",
			"messages", hydrated, "dropped_oversize", dropped)
	}

	go m.saveLoop()
	return m
}

func (m *Manager) setStage(s Stage) { m.stage.Store(s) }

// Stage returns the current processing stage. Never blocks.
func (m *Manager) Stage() Stage { return m.stage.Load().(Stage) }

// Ingest records one conversation turn in the runtime buffer. The gate is
// held only for the append itself.
func (m *Manager) Ingest(ctx context.Context, role memory.Role, text string) (memory.Message, error) {
	if !role.IsValid() {
		return memory.Message{}, fmt.Errorf("ingest: invalid role %q", role)
	}
	msg := memory.NewMessage(role, text, time.Now())

	if err := m.deps.Gate.Acquire(ctx); err != nil {
		return memory.Message{}, err
	}
	m.setStage(StageIngesting)
	accepted := m.buf.Append(msg)
	size := m.buf.Len()
	m.deps.Gate.Release()
	m.setStage(StageIdle)

	if accepted {
		m.metrics.RecordIngest(ctx, string(role))
		m.log.Debug("ingested message", "role", role, "tokens", msg.TokenCount, "buffer", size)
	}
	return msg, nil
}

// RetrieveMemories runs the retrieval pipeline for query. The gate is never
// held here; the engine embeds and searches on its own. Without a retrieval
// engine (no embeddings provider configured) it returns nothing.
func (m *Manager) RetrieveMemories(ctx context.Context, query string, topK int) ([]memory.RetrievalResult, error) {
	if m.deps.Engine == nil {
		return nil, nil
	}
	m.setStage(StageRetrieving)
	defer m.setStage(StageIdle)
	return m.deps.Engine.Retrieve(ctx, query, topK)
}

// FormatMemoriesForContext renders retrieval results as a prompt section.
func (m *Manager) FormatMemoriesForContext(results []memory.RetrievalResult) string {
	return retrieval.FormatForContext(results, time.Now())
}

// BuildPrompt runs the synchronous read path for one user message: retrieve,
// snapshot, classify, assemble. Retrieval failure degrades to a prompt
// without memory context rather than failing the turn.
func (m *Manager) BuildPrompt(ctx context.Context, userMessage, worldInfo string) (prompt.Assembly, error) {
	results, err := m.RetrieveMemories(ctx, userMessage, m.cfg.RetrieveTopK)
	if err != nil {
		m.log.Warn("retrieval failed, assembling without memory context", "error", err)
		results = nil
	}
	return m.AssemblePrompt(ctx, userMessage, worldInfo, results)
}

// AssemblePrompt builds the prompt from already-retrieved memories. Callers
// that fetch memories and reference material concurrently use this directly;
// [Manager.BuildPrompt] is the sequential convenience path.
func (m *Manager) AssemblePrompt(ctx context.Context, userMessage, worldInfo string, results []memory.RetrievalResult) (prompt.Assembly, error) {
	now := time.Now()

	if err := m.deps.Gate.Acquire(ctx); err != nil {
		m.setStage(StageIdle)
		return prompt.Assembly{}, err
	}
	snapshot := m.buf.Snapshot()
	m.deps.Gate.Release()

	m.setStage(StageAssembling)
	tiers := m.deps.Classifier.Classify(snapshot, now)
	mode := m.deps.Assembler.Classify(userMessage, results)
	var rel persona.Summary
	if m.deps.Relationship != nil {
		rel = m.deps.Relationship.Snapshot()
	}
	personaPrompt := m.deps.Persona.SystemPrompt(mode.Mode, rel)

	asm := m.deps.Assembler.Assemble(ctx, prompt.Input{
		UserMessage: userMessage,
		Retrieval:   results,
		Tiers:       tiers,
		Persona:     personaPrompt,
		WorldInfo:   worldInfo,
	}, now)

	m.setStage(StageAwaitingModel)
	return asm, nil
}

// RuntimeSize returns the runtime buffer length. The gate wait is bounded;
// a busy subsystem yields [memory.ErrMemoryBusy] instead of blocking.
func (m *Manager) RuntimeSize(ctx context.Context) (int, error) {
	if err := m.deps.Gate.TryAcquire(m.cfg.AccessorWait); err != nil {
		m.metrics.GateTimeouts.Add(ctx, 1)
		return 0, err
	}
	defer m.deps.Gate.Release()
	return m.buf.Len(), nil
}

// STMSize returns the short-term log length with the same bounded wait as
// [Manager.RuntimeSize].
func (m *Manager) STMSize(ctx context.Context) (int, error) {
	if err := m.deps.Gate.TryAcquire(m.cfg.AccessorWait); err != nil {
		m.metrics.GateTimeouts.Add(ctx, 1)
		return 0, err
	}
	defer m.deps.Gate.Release()
	return m.stmLog.Len(), nil
}

// CompleteTurn finishes one exchange: the assistant reply is appended under
// the gate, a snapshot is captured, and everything slow (persistence,
// formation, relationship) is handed to a tracked background task. The
// snapshot, dirty count, and save timestamp are all captured under the gate
// before the task spawns so post-processing never reads live shared state.
func (m *Manager) CompleteTurn(ctx context.Context, userText, assistantText string) error {
	if m.closed.Load() {
		return fmt.Errorf("complete turn: manager closed")
	}
	reply := memory.NewMessage(memory.RoleAssistant, assistantText, time.Now())

	if err := m.deps.Gate.Acquire(ctx); err != nil {
		return err
	}
	m.buf.Append(reply)
	snapshot := m.buf.Snapshot()
	dirty := m.buf.Dirty()
	lastSave := m.stmLog.LastSave()
	m.deps.Gate.Release()

	m.metrics.RecordIngest(ctx, string(memory.RoleAssistant))
	m.setStage(StagePostProcessing)
	m.tasks.Add(1)
	go m.postProcess(snapshot, dirty, lastSave, userText)
	return nil
}

// Close joins in-flight post-processing, stops the save loop, and performs a
// final short-term persist. Returns the context error if the join outlives
// ctx.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(m.done)

	joined := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
		return fmt.Errorf("close: waiting for background tasks: %w", ctx.Err())
	}

	if err := m.deps.Gate.Acquire(ctx); err != nil {
		return err
	}
	defer m.deps.Gate.Release()
	snapshot := m.buf.Snapshot()
	if err := m.stmLog.Persist(ctx, snapshot); err != nil {
		m.metrics.RecordStorageError(ctx, "stm")
		return err
	}
	m.buf.MarkClean()
	m.log.Info("memory manager closed", "persisted", len(snapshot))
	return nil
}
