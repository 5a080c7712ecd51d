// Package score computes the final run score. Pure arithmetic, no
// hidden state: the same elapsed time and commit count always produce
// the same breakdown.
package score

import "github.com/mendhq/mend/internal/types"

const (
	baseScore = 100

	// Flat bonus when the whole run finishes under the time threshold.
	timeBonus        = 10
	timeBonusMaxSecs = 300

	// Commits beyond the free allowance cost penaltyPerCommit each.
	freeCommits      = 20
	penaltyPerCommit = 2
)

// Calculate scores a finished run from its elapsed wall-clock seconds
// and cumulative commit count. The final score never drops below zero.
func Calculate(elapsedSeconds, commits int) types.ScoreBreakdown {
	b := types.ScoreBreakdown{Base: baseScore}

	if elapsedSeconds < timeBonusMaxSecs {
		b.TimeBonus = timeBonus
	}
	if commits > freeCommits {
		b.CommitPenalty = (commits - freeCommits) * penaltyPerCommit
	}

	b.Final = b.Base + b.TimeBonus - b.CommitPenalty
	if b.Final < 0 {
		b.Final = 0
	}
	return b
}
