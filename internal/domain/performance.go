package domain

import "time"

// PerformanceRecord is the per-user rolling statistics snapshot feeding the
// adaptive difficulty selector. It is both a cache and the source of truth:
// the tracker recomputes it from recent history before every decision.
type PerformanceRecord struct {
	UserID              string
	TotalOrders         int
	TotalChallenges     int
	CompletedChallenges int
	// AverageSolveTime is in seconds.
	AverageSolveTime float64
	LastDifficulty   Difficulty
	UpdatedAt        time.Time
}

// CompletionRate returns the completion percentage over the tracked window.
func (r *PerformanceRecord) CompletionRate() float64 {
	if r.TotalChallenges == 0 {
		return 0
	}
	return float64(r.CompletedChallenges) / float64(r.TotalChallenges) * 100
}

// Coupon is the reward artifact minted once per won session.
type Coupon struct {
	UserID      string
	Code        string
	Label       string
	DiscountPct int
	ExpiresAt   time.Time
	Applied     bool
	CreatedAt   time.Time
}
