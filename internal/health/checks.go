package health

import (
	"context"
	"fmt"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// sizer is the slice of the memory manager the readiness probe needs.
type sizer interface {
	RuntimeSize(ctx context.Context) (int, error)
}

// StoreCheck reports whether the long-term memory backend is reachable by
// asking it for a record count.
func StoreCheck(store memory.VectorStore) Checker {
	return Checker{
		Name: "vector_store",
		Check: func(ctx context.Context) error {
			if _, err := store.Count(ctx); err != nil {
				return fmt.Errorf("count records: %w", err)
			}
			return nil
		},
	}
}

// MemoryCheck reports whether the memory manager is responsive. A manager
// that cannot answer a size query within its accessor wait is considered
// unhealthy, which usually means a stuck writer is holding the gate.
func MemoryCheck(mgr sizer) Checker {
	return Checker{
		Name: "memory",
		Check: func(ctx context.Context) error {
			if _, err := mgr.RuntimeSize(ctx); err != nil {
				return fmt.Errorf("runtime buffer: %w", err)
			}
			return nil
		},
	}
}
