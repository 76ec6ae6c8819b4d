// Package difficulty derives the adaptive challenge tier from a freshly
// recomputed performance record.
package difficulty

import "github.com/quickbites/challenge-engine/internal/domain"

// Select is a pure function of the record.
//
// Fewer than 3 orders is always easy. From 3 orders on, the completion rate
// over the rolling window decides: under 50% easy, 50-80% medium, above 80%
// hard.
func Select(rec *domain.PerformanceRecord) domain.Difficulty {
	if rec == nil {
		return domain.DifficultyEasy
	}
	if rec.TotalOrders < 3 {
		return domain.DifficultyEasy
	}

	rate := rec.CompletionRate()
	switch {
	case rate < 50:
		return domain.DifficultyEasy
	case rate <= 80:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyHard
	}
}
