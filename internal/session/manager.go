// Package session implements the challenge session lifecycle: a time-boxed
// lease on a puzzle raced against the linked order's delivery. The wall-clock
// deadline stored on the session is a backstop only; the authoritative
// deadline is delivery, re-checked against the order gateway on every call.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/catalog"
	"github.com/quickbites/challenge-engine/internal/difficulty"
	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/internal/order"
	"github.com/quickbites/challenge-engine/internal/performance"
	"github.com/quickbites/challenge-engine/internal/reward"
	"github.com/quickbites/challenge-engine/internal/token"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

// Config carries the session policy knobs.
type Config struct {
	// SessionTTL is the wall-clock backstop applied at start.
	SessionTTL time.Duration
	// GraceWindow is the extension granted when a soft-expired session is
	// reactivated because the order is still undelivered.
	GraceWindow time.Duration
	// ExposeSolutions includes solution moves in puzzle payloads.
	ExposeSolutions bool
	// PlayURL is the base URL of the playing surface embedded in start
	// results.
	PlayURL string
}

// Manager owns all session state transitions. Every mutation goes through
// the store's optimistic-concurrency path so concurrent calls on the same
// session cannot skip lifecycle edges.
type Manager struct {
	store   *Store
	catalog catalog.Catalog
	orders  order.Gateway
	tracker *performance.Tracker
	rewards *reward.Issuer
	tokens  *token.Codec
	cfg     Config
	logger  *zap.Logger
}

func NewManager(store *Store, cat catalog.Catalog, orders order.Gateway, tracker *performance.Tracker, rewards *reward.Issuer, tokens *token.Codec, cfg Config, logger *zap.Logger) (*Manager, error) {
	if store == nil || orders == nil || tokens == nil {
		return nil, errors.New("session manager: missing dependencies")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		catalog: cat,
		orders:  orders,
		tracker: tracker,
		rewards: rewards,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Start opens a session for the order. Difficulty is adaptive when the
// caller leaves it empty. At most one non-terminal session exists per order:
// when an active session already holds the order, Start returns that session
// with a freshly signed token instead of creating a rival.
func (m *Manager) Start(ctx context.Context, userID, orderID string, requested domain.Difficulty, ct domain.ChallengeType) (*challengedto.StartResult, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return nil, errors.New("user id and order id are required")
	}
	if ct == "" {
		ct = domain.ChallengeCoding
	}

	diff := requested
	if diff == "" {
		diff = m.selectDifficulty(ctx, userID)
	} else if !diff.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q", requested)
	}

	var puzzle *domain.Puzzle
	if ct == domain.ChallengeChess {
		if m.catalog == nil {
			return nil, challengedto.Errf(challengedto.CodeNoPuzzleAvailable, "puzzle catalog is not configured")
		}
		p, err := m.catalog.RandomByDifficulty(ctx, diff)
		if errors.Is(err, catalog.ErrNoPuzzleAvailable) {
			return nil, challengedto.Errf(challengedto.CodeNoPuzzleAvailable, "no puzzle available for difficulty "+string(diff))
		}
		if err != nil {
			return nil, err
		}
		puzzle = p
	}

	now := time.Now()
	sess := &domain.ChallengeSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		OrderID:       orderID,
		Difficulty:    diff,
		ChallengeType: ct,
		Status:        domain.SessionActive,
		ExpiresAt:     now.Add(m.cfg.SessionTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if puzzle != nil {
		sess.PuzzleID = puzzle.ID
	}

	holderID, claimed, err := m.store.ClaimOrder(ctx, orderID, sess.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		existing, err := m.store.Get(ctx, holderID)
		if err == nil && existing.Status == domain.SessionActive {
			m.logger.Info("session_start_rejoined",
				zap.String("session_id", existing.ID),
				zap.String("order_id", orderID))
			return m.startResult(ctx, existing)
		}
		// Holder is terminal or gone; the order is free again.
		if err := m.store.ReassignOrder(ctx, orderID, sess.ID); err != nil {
			return nil, err
		}
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Info("session_start",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.String("difficulty", string(diff)),
		zap.String("challenge_type", string(ct)))
	return m.startResult(ctx, sess)
}

// GetStatus resolves the token, reconciles the session against the order's
// delivery state, and returns the session only while the play window is
// open. A non-nil override swaps the puzzle in the same round trip.
func (m *Manager) GetStatus(ctx context.Context, rawToken string, override *PuzzleOverride) (*challengedto.SessionInfo, error) {
	sess, err := m.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if override != nil && sess.ChallengeType == domain.ChallengeChess {
		sess, err = m.applyOverride(ctx, sess, override)
		if err != nil {
			return nil, err
		}
	}
	sess, err = m.reconcile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionActive {
		return nil, m.closedError(sess)
	}
	return m.sessionInfo(ctx, sess), nil
}

// UpdatePuzzle swaps the puzzle bound to a chess session, optionally moving
// its difficulty tier with it.
func (m *Manager) UpdatePuzzle(ctx context.Context, rawToken, puzzleID string, newDifficulty domain.Difficulty) (*challengedto.SessionInfo, error) {
	sess, err := m.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if sess.ChallengeType != domain.ChallengeChess {
		return nil, challengedto.Errf(challengedto.CodePuzzleNotFound, "session has no puzzle to update")
	}
	sess, err = m.applyOverride(ctx, sess, &PuzzleOverride{PuzzleID: puzzleID, Difficulty: newDifficulty})
	if err != nil {
		return nil, err
	}
	return m.sessionInfo(ctx, sess), nil
}

// Complete settles a session as won and mints the reward. The delivery race
// is decided here conclusively: a delivered order beats the completion even
// when the client believed it was in time.
func (m *Manager) Complete(ctx context.Context, rawToken string) (*challengedto.Reward, error) {
	sess, err := m.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	sess, err = m.reconcile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionActive {
		if sess.DeliveredExpiry {
			return nil, challengedto.Errf(challengedto.CodeTooLate, "order already delivered, challenge window closed")
		}
		return nil, m.closedError(sess)
	}

	now := time.Now()
	won, err := m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
		if cur.Status != domain.SessionActive {
			return challengedto.Errf(challengedto.CodeSessionExpired, "session already settled")
		}
		cur.Status = domain.SessionWon
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.orders.SetChallengeStatus(ctx, won.OrderID, domain.OutcomeCompleted); err != nil {
		m.logger.Warn("order_annotate_failed",
			zap.String("order_id", won.OrderID), zap.Error(err))
	}

	m.logger.Info("session_complete",
		zap.String("session_id", won.ID),
		zap.String("user_id", won.UserID),
		zap.Duration("solve_time", now.Sub(won.CreatedAt)))

	if m.rewards == nil {
		return nil, nil
	}
	return m.rewards.IssueWin(ctx, won, now)
}

// RecordResult records a per-attempt outcome from the playing surface. A
// failed attempt is only terminal when the order has been delivered in the
// meantime; otherwise the player keeps trying inside the open window.
func (m *Manager) RecordResult(ctx context.Context, rawToken string, passed bool) (*challengedto.ResultAck, error) {
	sess, err := m.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() && !sess.SoftExpired(time.Now()) {
		return &challengedto.ResultAck{OK: true, Closed: true}, nil
	}
	if passed {
		return &challengedto.ResultAck{OK: true}, nil
	}

	delivered, err := m.orderDelivered(ctx, sess.OrderID)
	if err != nil {
		return nil, err
	}
	if !delivered {
		return &challengedto.ResultAck{OK: true}, nil
	}

	now := time.Now()
	expired, err := m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
		if cur.Status == domain.SessionWon || cur.Status == domain.SessionLost {
			return nil
		}
		cur.Status = domain.SessionExpired
		cur.DeliveredExpiry = true
		cur.ExpiresAt = now
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.orders.SetChallengeStatus(ctx, expired.OrderID, domain.OutcomeFailedAfterDelivery); err != nil {
		m.logger.Warn("order_annotate_failed",
			zap.String("order_id", expired.OrderID), zap.Error(err))
	}
	if m.rewards != nil {
		m.rewards.RecordLoss(ctx, expired)
	}
	m.logger.Info("session_expired_on_delivery",
		zap.String("session_id", expired.ID),
		zap.String("order_id", expired.OrderID))
	return nil, challengedto.Errf(challengedto.CodeTooLate, "order delivered before the challenge was solved")
}

// Fail abandons the session. The transition is explicit and final.
func (m *Manager) Fail(ctx context.Context, rawToken string) (*challengedto.ResultAck, error) {
	sess, err := m.resolve(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	lost, err := m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
		if cur.Status == domain.SessionWon || (cur.Status == domain.SessionExpired && cur.DeliveredExpiry) {
			return challengedto.Errf(challengedto.CodeSessionExpired, "session already settled")
		}
		cur.Status = domain.SessionLost
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.orders.SetChallengeStatus(ctx, lost.OrderID, domain.OutcomeFailed); err != nil {
		m.logger.Warn("order_annotate_failed",
			zap.String("order_id", lost.OrderID), zap.Error(err))
	}
	if m.rewards != nil {
		m.rewards.RecordLoss(ctx, lost)
	}
	m.logger.Info("session_failed", zap.String("session_id", lost.ID))
	return &challengedto.ResultAck{OK: true, Closed: true}, nil
}

// PuzzleOverride swaps the puzzle bound to a chess session.
type PuzzleOverride struct {
	PuzzleID   string
	Difficulty domain.Difficulty
}

// resolve verifies the capability token and loads its session.
func (m *Manager) resolve(ctx context.Context, rawToken string) (*domain.ChallengeSession, error) {
	claims, err := m.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}
	sess, err := m.store.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, challengedto.Errf(challengedto.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// reconcile settles the delivery race. A delivered order hard-expires the
// session irreversibly; an undelivered order reactivates a soft timeout with
// a fresh grace window.
func (m *Manager) reconcile(ctx context.Context, sess *domain.ChallengeSession) (*domain.ChallengeSession, error) {
	if sess.Status == domain.SessionWon || sess.Status == domain.SessionLost {
		return sess, nil
	}

	status, err := m.orders.Status(ctx, sess.OrderID)
	orderKnown := err == nil
	if err != nil && !errors.Is(err, order.ErrOrderNotFound) {
		return nil, err
	}
	now := time.Now()

	if orderKnown && status == domain.OrderDelivered {
		if sess.Status == domain.SessionExpired && sess.DeliveredExpiry {
			return sess, nil
		}
		out, err := m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
			if cur.Status == domain.SessionWon || cur.Status == domain.SessionLost {
				return nil
			}
			cur.Status = domain.SessionExpired
			cur.DeliveredExpiry = true
			if cur.ExpiresAt.After(now) {
				cur.ExpiresAt = now
			}
			cur.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, err
		}
		if out.Status == domain.SessionExpired {
			m.logger.Info("session_expired_on_delivery",
				zap.String("session_id", out.ID),
				zap.String("order_id", out.OrderID))
		}
		return out, nil
	}

	if orderKnown && sess.SoftExpired(now) {
		out, err := m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
			if !cur.SoftExpired(now) {
				return nil
			}
			cur.Status = domain.SessionActive
			cur.ExpiresAt = now.Add(m.cfg.GraceWindow)
			cur.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, err
		}
		if out.Status == domain.SessionActive {
			m.logger.Info("session_reactivated",
				zap.String("session_id", out.ID),
				zap.Time("expires_at", out.ExpiresAt))
		}
		return out, nil
	}

	return sess, nil
}

func (m *Manager) orderDelivered(ctx context.Context, orderID string) (bool, error) {
	status, err := m.orders.Status(ctx, orderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == domain.OrderDelivered, nil
}

func (m *Manager) selectDifficulty(ctx context.Context, userID string) domain.Difficulty {
	if m.tracker == nil {
		return domain.DifficultyEasy
	}
	rec, err := m.tracker.Refresh(ctx, userID)
	if err != nil {
		m.logger.Warn("difficulty_fallback",
			zap.String("user_id", userID), zap.Error(err))
		return domain.DifficultyEasy
	}
	return difficulty.Select(rec)
}

func (m *Manager) applyOverride(ctx context.Context, sess *domain.ChallengeSession, ov *PuzzleOverride) (*domain.ChallengeSession, error) {
	if m.catalog == nil {
		return nil, challengedto.Errf(challengedto.CodePuzzleNotFound, "puzzle catalog is not configured")
	}
	p, err := m.catalog.Get(ctx, strings.TrimSpace(ov.PuzzleID))
	if errors.Is(err, catalog.ErrPuzzleNotFound) {
		return nil, challengedto.Errf(challengedto.CodePuzzleNotFound, "puzzle "+ov.PuzzleID+" not found")
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return m.store.Mutate(ctx, sess.ID, func(cur *domain.ChallengeSession) error {
		cur.PuzzleID = p.ID
		if ov.Difficulty.Valid() {
			cur.Difficulty = ov.Difficulty
		}
		cur.UpdatedAt = now
		return nil
	})
}

func (m *Manager) closedError(sess *domain.ChallengeSession) error {
	switch sess.Status {
	case domain.SessionExpired:
		if sess.DeliveredExpiry {
			return challengedto.Errf(challengedto.CodeSessionExpired, "session expired: order was delivered")
		}
		return challengedto.Errf(challengedto.CodeSessionExpired, "session expired")
	case domain.SessionWon:
		return challengedto.Errf(challengedto.CodeSessionExpired, "session already completed")
	default:
		return challengedto.Errf(challengedto.CodeSessionExpired, "session closed")
	}
}

func (m *Manager) startResult(ctx context.Context, sess *domain.ChallengeSession) (*challengedto.StartResult, error) {
	signed, err := m.tokens.Issue(sess)
	if err != nil {
		return nil, err
	}
	res := &challengedto.StartResult{
		SessionID:     sess.ID,
		Token:         signed,
		ChallengeType: string(sess.ChallengeType),
		Difficulty:    string(sess.Difficulty),
		ExpiresAt:     sess.ExpiresAt,
		Puzzle:        m.puzzlePayload(ctx, sess),
	}
	if m.cfg.PlayURL != "" {
		q := url.Values{}
		q.Set("session", signed)
		if sess.ChallengeType == domain.ChallengeChess {
			q.Set("type", "chess")
		}
		res.PlayURL = strings.TrimRight(m.cfg.PlayURL, "/") + "/?" + q.Encode()
	}
	return res, nil
}

func (m *Manager) sessionInfo(ctx context.Context, sess *domain.ChallengeSession) *challengedto.SessionInfo {
	return &challengedto.SessionInfo{
		UserID:        sess.UserID,
		OrderID:       sess.OrderID,
		Difficulty:    string(sess.Difficulty),
		ChallengeType: string(sess.ChallengeType),
		Status:        string(sess.Status),
		ExpiresAt:     sess.ExpiresAt,
		Puzzle:        m.puzzlePayload(ctx, sess),
	}
}

func (m *Manager) puzzlePayload(ctx context.Context, sess *domain.ChallengeSession) *challengedto.PuzzlePayload {
	if sess.ChallengeType != domain.ChallengeChess || sess.PuzzleID == "" || m.catalog == nil {
		return nil
	}
	p, err := m.catalog.Get(ctx, sess.PuzzleID)
	if err != nil {
		m.logger.Warn("puzzle_load_failed",
			zap.String("session_id", sess.ID),
			zap.String("puzzle_id", sess.PuzzleID),
			zap.Error(err))
		return nil
	}
	payload := &challengedto.PuzzlePayload{
		PuzzleID:    p.ID,
		FEN:         p.FEN,
		Hint:        p.Hint,
		Description: p.Description,
		Category:    string(p.Category),
		Difficulty:  string(p.Difficulty),
	}
	if m.cfg.ExposeSolutions {
		payload.SolutionMoves = p.SolutionMoves
	}
	return payload
}
