// Package reward mints discount coupons for won sessions and keeps the
// performance ledger in sync. Reward issuance outranks bookkeeping: a failed
// performance update is logged, never propagated.
package reward

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/internal/performance"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

const (
	couponValidity = 7 * 24 * time.Hour
	codeLength     = 6
	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Entry is one row of the fixed discount table.
type Entry struct {
	Label       string
	DiscountPct int
}

// DefaultTable keys discounts by difficulty. The medium tier's 10% is pinned
// by the checkout contract.
var DefaultTable = map[domain.Difficulty]Entry{
	domain.DifficultyEasy:   {Label: "5% off your next order", DiscountPct: 5},
	domain.DifficultyMedium: {Label: "10% off your next order", DiscountPct: 10},
	domain.DifficultyHard:   {Label: "20% off your next order", DiscountPct: 20},
}

type CouponRepository interface {
	Insert(ctx context.Context, coupon *domain.Coupon) error
}

type Issuer struct {
	coupons CouponRepository
	tracker *performance.Tracker
	table   map[domain.Difficulty]Entry
	blend   performance.BlendFunc
	logger  *zap.Logger
}

func NewIssuer(coupons CouponRepository, tracker *performance.Tracker, logger *zap.Logger) (*Issuer, error) {
	if coupons == nil {
		return nil, errors.New("coupon repository is required")
	}
	if tracker == nil {
		return nil, errors.New("performance tracker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		coupons: coupons,
		tracker: tracker,
		table:   DefaultTable,
		blend:   performance.HalfBlend,
		logger:  logger,
	}, nil
}

// IssueWin mints the coupon for a freshly won session and updates the
// performance record. Exactly one coupon per WON session; the session
// manager guards against repeat completion.
func (i *Issuer) IssueWin(ctx context.Context, sess *domain.ChallengeSession, now time.Time) (*challengedto.Reward, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	entry, ok := i.table[sess.Difficulty]
	if !ok {
		entry = i.table[domain.DifficultyEasy]
	}

	code, err := couponCode(sess.ChallengeType)
	if err != nil {
		return nil, fmt.Errorf("generate coupon code: %w", err)
	}
	coupon := &domain.Coupon{
		UserID:      sess.UserID,
		Code:        code,
		Label:       entry.Label,
		DiscountPct: entry.DiscountPct,
		ExpiresAt:   now.Add(couponValidity),
		CreatedAt:   now,
	}
	if err := i.coupons.Insert(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	solveTime := now.Sub(sess.CreatedAt)
	if err := i.tracker.RecordWin(ctx, sess, solveTime, i.blend); err != nil {
		i.logger.Error("performance_update_error",
			zap.String("session_id", sess.ID),
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
	}

	i.logger.Info("reward_issue",
		zap.String("session_id", sess.ID),
		zap.String("user_id", sess.UserID),
		zap.String("difficulty", string(sess.Difficulty)),
		zap.Int("discount_pct", entry.DiscountPct),
	)
	return &challengedto.Reward{
		Code:        coupon.Code,
		Label:       coupon.Label,
		DiscountPct: coupon.DiscountPct,
		ExpiresAt:   coupon.ExpiresAt,
	}, nil
}

// RecordLoss books an unsuccessful attempt without minting anything.
func (i *Issuer) RecordLoss(ctx context.Context, sess *domain.ChallengeSession) {
	if err := i.tracker.RecordLoss(ctx, sess.UserID); err != nil {
		i.logger.Error("performance_update_error",
			zap.String("session_id", sess.ID),
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
	}
}

// couponCode builds codes like CHESS-X7K2QD / FOOD-A93ZRT.
func couponCode(ct domain.ChallengeType) (string, error) {
	prefix := "FOOD-"
	if ct == domain.ChallengeChess {
		prefix = "CHESS-"
	}
	buf := make([]byte, codeLength)
	for idx := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[idx] = codeAlphabet[n.Int64()]
	}
	return prefix + string(buf), nil
}
