// Package performance maintains the per-user rolling statistics that drive
// adaptive difficulty. The stored record is both a cache and the source of
// truth: it is recomputed from recent history before every decision.
package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/internal/order"
)

// BlendFunc folds a new solve time into the running average. The default is
// the documented two-term blend: the most recent sample always weighs 50%,
// regardless of sample count.
type BlendFunc func(old, next float64) float64

func HalfBlend(old, next float64) float64 {
	if old == 0 {
		return next
	}
	return (old + next) / 2
}

// SessionHistory exposes the recent terminal sessions of a user, newest
// first. WON and EXPIRED count toward the rolling window; LOST sessions are
// deliberately excluded from it.
type SessionHistory interface {
	RecentTerminal(ctx context.Context, userID string, limit int) ([]domain.ChallengeSession, error)
}

type Tracker struct {
	repo    Repository
	orders  order.Gateway
	history SessionHistory
	window  int
	logger  *zap.Logger
}

func NewTracker(repo Repository, orders order.Gateway, history SessionHistory, window int, logger *zap.Logger) (*Tracker, error) {
	if repo == nil || orders == nil || history == nil {
		return nil, errors.New("tracker requires repository, order gateway and session history")
	}
	if window <= 0 {
		window = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{repo: repo, orders: orders, history: history, window: window, logger: logger}, nil
}

// Refresh recomputes the record from the order history and the most recent
// terminal sessions, persists the snapshot, and returns it.
func (t *Tracker) Refresh(ctx context.Context, userID string) (*domain.PerformanceRecord, error) {
	rec, err := t.repo.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		rec = &domain.PerformanceRecord{UserID: userID, LastDifficulty: domain.DifficultyEasy}
	} else if err != nil {
		return nil, fmt.Errorf("load performance record: %w", err)
	}

	orderCount, err := t.orders.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	recent, err := t.history.RecentTerminal(ctx, userID, t.window)
	if err != nil {
		return nil, fmt.Errorf("load recent sessions: %w", err)
	}

	completed := 0
	var totalSolve float64
	solved := 0
	for _, sess := range recent {
		if sess.Status != domain.SessionWon {
			continue
		}
		completed++
		if d := sess.UpdatedAt.Sub(sess.CreatedAt); d > 0 {
			totalSolve += d.Seconds()
			solved++
		}
	}

	rec.TotalOrders = orderCount
	rec.TotalChallenges = len(recent)
	rec.CompletedChallenges = completed
	if solved > 0 {
		rec.AverageSolveTime = totalSolve / float64(solved)
	}
	rec.UpdatedAt = time.Now()

	if err := t.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist performance snapshot: %w", err)
	}
	t.logger.Debug("performance_refresh",
		zap.String("user_id", userID),
		zap.Int("total_orders", rec.TotalOrders),
		zap.Int("total_challenges", rec.TotalChallenges),
		zap.Int("completed", rec.CompletedChallenges),
	)
	return rec, nil
}

// RecordWin folds a won session into the stored record.
func (t *Tracker) RecordWin(ctx context.Context, sess *domain.ChallengeSession, solveTime time.Duration, blend BlendFunc) error {
	if blend == nil {
		blend = HalfBlend
	}
	rec, err := t.repo.Get(ctx, sess.UserID)
	if errors.Is(err, ErrRecordNotFound) {
		rec = &domain.PerformanceRecord{UserID: sess.UserID}
	} else if err != nil {
		return err
	}
	rec.TotalChallenges++
	rec.CompletedChallenges++
	rec.LastDifficulty = sess.Difficulty
	rec.AverageSolveTime = blend(rec.AverageSolveTime, solveTime.Seconds())
	return t.repo.Upsert(ctx, rec)
}

// RecordLoss counts an unsuccessful attempt; completed stays unchanged.
func (t *Tracker) RecordLoss(ctx context.Context, userID string) error {
	rec, err := t.repo.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		rec = &domain.PerformanceRecord{UserID: userID}
	} else if err != nil {
		return err
	}
	rec.TotalChallenges++
	return t.repo.Upsert(ctx, rec)
}
