package memory

import "errors"

// Sentinel errors for the memory subsystem. Callers match them with
// [errors.Is]; concrete causes are wrapped underneath.
var (
	// ErrMemoryBusy is returned when the shared gate could not be acquired
	// within the caller's bound. The request was not processed.
	ErrMemoryBusy = errors.New("memory subsystem busy")

	// ErrStorageUnavailable indicates a disk or index backend failed.
	// Synchronous paths degrade to empty results instead of surfacing it;
	// background paths log it and continue.
	ErrStorageUnavailable = errors.New("memory storage unavailable")

	// ErrEmbeddingFailure indicates the embedding provider failed or timed
	// out. Retrieval degrades to no memory context; formation skips the
	// affected turn.
	ErrEmbeddingFailure = errors.New("embedding generation failed")

	// ErrBudgetExceeded indicates an internal accounting violation in the
	// prompt assembler. It never escapes assembly: the assembler truncates
	// until the budget holds.
	ErrBudgetExceeded = errors.New("prompt budget exceeded")
)
