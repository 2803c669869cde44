// Package window classifies conversation messages into recency tiers for
// prompt budgeting. Newer tiers get more of the token budget; the archive
// tier is summarised hardest.
package window

import (
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// Default tier cutoffs.
const (
	DefaultRecentCutoff = 30 * time.Minute
	DefaultMediumCutoff = 6 * time.Hour
)

// Classifier partitions messages by age. The zero value is not usable; call
// [New].
type Classifier struct {
	recentCutoff time.Duration
	mediumCutoff time.Duration
}

// New returns a Classifier with the given cutoffs. Non-positive values fall
// back to the defaults; a medium cutoff at or below the recent cutoff is
// lifted to keep the tiers ordered.
func New(recentCutoff, mediumCutoff time.Duration) *Classifier {
	if recentCutoff <= 0 {
		recentCutoff = DefaultRecentCutoff
	}
	if mediumCutoff <= recentCutoff {
		mediumCutoff = DefaultMediumCutoff
		if mediumCutoff <= recentCutoff {
			mediumCutoff = recentCutoff * 2
		}
	}
	return &Classifier{recentCutoff: recentCutoff, mediumCutoff: mediumCutoff}
}

// Classify partitions msgs into tiers relative to now. Pure: no clock reads,
// no I/O, input order preserved within each tier.
//
// Messages with a zero timestamp cannot be aged and are treated as recent.
func (c *Classifier) Classify(msgs []memory.Message, now time.Time) memory.WindowTiers {
	var tiers memory.WindowTiers
	for _, m := range msgs {
		switch {
		case m.Timestamp.IsZero():
			tiers.Recent = append(tiers.Recent, m)
		case now.Sub(m.Timestamp) < c.recentCutoff:
			tiers.Recent = append(tiers.Recent, m)
		case now.Sub(m.Timestamp) < c.mediumCutoff:
			tiers.Medium = append(tiers.Medium, m)
		default:
			tiers.Archive = append(tiers.Archive, m)
		}
	}
	return tiers
}
