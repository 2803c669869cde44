package retrieval

import (
	"math"
	"time"

	"github.com/kadonomaro197-cloud/AiD/internal/entity"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// Temporal decay anchor points. Memories keep full weight for a week, then
// decay piecewise-linearly toward the floor.
const (
	decayFullDays   = 7
	decayMonthDays  = 30
	decayMonthValue = 0.7
	decayQtrDays    = 90
	decayQtrValue   = 0.4
	decayYearDays   = 365
	decayYearValue  = 0.2
	decayFloor      = 0.05
)

// accessBoostCap bounds how much frequent access can amplify a record.
const accessBoostCap = 1.5

// entityBoostPerMatch is the per-matching-entity amplification, capped at
// entityBoostCap.
const (
	entityBoostPerMatch = 0.25
	entityBoostCap      = 1.5
)

// temporalDecay returns the age weight for a record created at createdAt.
func temporalDecay(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 1.0
	}
	days := now.Sub(createdAt).Hours() / 24
	switch {
	case days <= decayFullDays:
		return 1.0
	case days <= decayMonthDays:
		frac := (days - decayFullDays) / (decayMonthDays - decayFullDays)
		return 1.0 + frac*(decayMonthValue-1.0)
	case days <= decayQtrDays:
		frac := (days - decayMonthDays) / (decayQtrDays - decayMonthDays)
		return decayMonthValue + frac*(decayQtrValue-decayMonthValue)
	case days <= decayYearDays:
		frac := (days - decayQtrDays) / (decayYearDays - decayQtrDays)
		return decayQtrValue + frac*(decayYearValue-decayQtrValue)
	default:
		// Continue the final slope past a year, clamped at the floor.
		perDay := (decayYearValue - decayQtrValue) / (decayYearDays - decayQtrDays)
		v := decayYearValue + (days-decayYearDays)*perDay
		return math.Max(decayFloor, v)
	}
}

// accessBoost rewards records that keep proving useful: logarithmic in the
// access count so early accesses matter most.
func accessBoost(count int) float64 {
	if count <= 0 {
		return 1.0
	}
	return math.Min(accessBoostCap, 1.0+math.Log10(float64(count))/2)
}

// entityBoost amplifies records sharing named entities with the query.
func entityBoost(queryEntities, recordEntities []string) float64 {
	matches := entity.Overlap(queryEntities, recordEntities)
	if matches == 0 {
		return 1.0
	}
	return math.Min(entityBoostCap, 1.0+float64(matches)*entityBoostPerMatch)
}

// score computes the composite relevance of a search hit for a query at now.
func score(hit memory.SearchHit, queryEntities []string, now time.Time) memory.RetrievalResult {
	importance := hit.Record.Importance
	if importance <= 0 {
		importance = 1.0
	}
	components := memory.ScoreBreakdown{
		Similarity: hit.Similarity,
		Temporal:   temporalDecay(hit.Record.CreatedAt, now),
		Access:     accessBoost(hit.Record.AccessCount),
		Entity:     entityBoost(queryEntities, hit.Record.Entities),
		Importance: importance,
	}
	return memory.RetrievalResult{
		Record: hit.Record,
		Score: components.Similarity *
			components.Temporal *
			components.Access *
			components.Entity *
			components.Importance,
		Components: components,
	}
}
