package prompt

// Category names one budgeted slice of the assembled prompt.
type Category string

const (
	CategorySystem        Category = "system"
	CategoryWorldInfo     Category = "world_info"
	CategoryRecentChat    Category = "recent_chat"
	CategoryMemoryContext Category = "memory_context"
)

// fillOrder is the fixed priority in which categories claim tokens. When the
// limit is tight, later categories are starved first.
var fillOrder = []Category{
	CategorySystem,
	CategoryWorldInfo,
	CategoryRecentChat,
	CategoryMemoryContext,
}

// DefaultTotalTokens is the whole-prompt ceiling, response allowance
// included.
const DefaultTotalTokens = 28000

// Budget is one mode's token table. Allocations are per-category caps on the
// prompt side; Response is reserved for the model's reply and never
// reallocated.
type Budget struct {
	TotalLimit  int
	Response    int
	Allocations map[Category]int
}

// Per-mode tables. Prompt allocations plus the response allowance sum to
// [DefaultTotalTokens]; response allowances are ordered chat > memory > rag
// so that lookup-heavy prompts trade reply length for context.
var modeBudgets = map[Mode]Budget{
	ModeChat: {
		TotalLimit: DefaultTotalTokens,
		Response:   4000,
		Allocations: map[Category]int{
			CategorySystem:        3000,
			CategoryWorldInfo:     2000,
			CategoryRecentChat:    15000,
			CategoryMemoryContext: 4000,
		},
	},
	ModeMemory: {
		TotalLimit: DefaultTotalTokens,
		Response:   3000,
		Allocations: map[Category]int{
			CategorySystem:        3000,
			CategoryWorldInfo:     2000,
			CategoryRecentChat:    12000,
			CategoryMemoryContext: 8000,
		},
	},
	ModeRAG: {
		TotalLimit: DefaultTotalTokens,
		Response:   2000,
		Allocations: map[Category]int{
			CategorySystem:        3000,
			CategoryWorldInfo:     6000,
			CategoryRecentChat:    13000,
			CategoryMemoryContext: 4000,
		},
	},
}

// BudgetFor returns a copy of the mode's budget table. Unknown modes get the
// chat table.
func BudgetFor(mode Mode) Budget {
	b, ok := modeBudgets[mode]
	if !ok {
		b = modeBudgets[ModeChat]
	}
	alloc := make(map[Category]int, len(b.Allocations))
	for k, v := range b.Allocations {
		alloc[k] = v
	}
	b.Allocations = alloc
	return b
}

// Fit distributes limit tokens over the requested wants in priority order.
// Each category receives min(want, remaining); once the limit is exhausted,
// every later category gets zero. The granted sum never exceeds limit.
func Fit(limit int, wants map[Category]int) map[Category]int {
	granted := make(map[Category]int, len(wants))
	remaining := limit
	for _, cat := range fillOrder {
		want := wants[cat]
		if want < 0 {
			want = 0
		}
		g := want
		if g > remaining {
			g = remaining
		}
		granted[cat] = g
		remaining -= g
	}
	return granted
}
