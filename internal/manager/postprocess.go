package manager

import (
	"context"
	"errors"
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// postProcessTimeout bounds one background pass; formation can call the
// embedding provider.
const postProcessTimeout = 30 * time.Second

// saveLoopInterval is how often the elapsed-time half of the save trigger is
// evaluated.
const saveLoopInterval = 15 * time.Second

// postProcess runs everything that must not delay the reply: short-term
// persistence on the dual trigger, memory formation, and the relationship
// update. Every failure is logged and swallowed; background work never
// propagates errors to the user-facing path.
//
// All arguments are captured under the gate by [Manager.CompleteTurn];
// reading lastSave from the log here would race with a concurrent persist.
func (m *Manager) postProcess(snapshot []memory.Message, dirty int, lastSave time.Time, userText string) {
	defer m.tasks.Done()
	defer m.setStage(StageIdle)

	ctx, cancel := context.WithTimeout(context.Background(), postProcessTimeout)
	defer cancel()

	m.metrics.BackgroundTasks.Add(ctx, 1)
	defer m.metrics.BackgroundTasks.Add(ctx, -1)

	now := time.Now()

	if m.cfg.SaveTrigger.Due(dirty, lastSave, now) {
		m.persistSTM(ctx, snapshot)
	}

	if m.deps.Formation != nil {
		if formed, err := m.deps.Formation.ProcessTurn(ctx, userText, now); err != nil {
			if errors.Is(err, memory.ErrEmbeddingFailure) {
				m.metrics.RecordProviderError(ctx, "embeddings", "embed")
			}
			m.log.Warn("memory formation failed for this turn", "error", err)
		} else if formed > 0 {
			m.log.Info("memory formation complete", "formed", formed)
		}
	}

	if m.deps.Relationship != nil {
		if err := m.deps.Relationship.RecordExchange(userText, now); err != nil {
			m.log.Warn("relationship update failed", "error", err)
		}
	}
}

// persistSTM writes the snapshot to the short-term log under the gate and
// resets the buffer's dirty counter on success.
func (m *Manager) persistSTM(ctx context.Context, snapshot []memory.Message) {
	start := time.Now()
	if err := m.deps.Gate.Acquire(ctx); err != nil {
		m.log.Warn("skipping short-term persist, gate unavailable", "error", err)
		return
	}
	defer m.deps.Gate.Release()

	if err := m.stmLog.Persist(ctx, snapshot); err != nil {
		m.metrics.RecordStorageError(ctx, "stm")
		m.log.Warn("short-term persist failed", "error", err)
		return
	}
	m.buf.MarkClean()
	m.metrics.PersistDuration.Record(ctx, time.Since(start).Seconds())
	m.log.Debug("short-term log persisted", "messages", len(snapshot))
}

// saveLoop drives the elapsed-time half of the save trigger so a quiet
// conversation still reaches disk. Runs until Close.
func (m *Manager) saveLoop() {
	ticker := time.NewTicker(saveLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.deps.Gate.Acquire(ctx); err != nil {
			cancel()
			continue
		}
		dirty := m.buf.Dirty()
		var snapshot []memory.Message
		due := m.cfg.SaveTrigger.Due(dirty, m.stmLog.LastSave(), time.Now())
		if due {
			snapshot = m.buf.Snapshot()
		}
		m.deps.Gate.Release()

		if due {
			m.persistSTM(ctx, snapshot)
		}
		cancel()
	}
}
