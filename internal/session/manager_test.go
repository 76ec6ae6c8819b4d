package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/catalog"
	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/internal/order"
	"github.com/quickbites/challenge-engine/internal/performance"
	"github.com/quickbites/challenge-engine/internal/reward"
	"github.com/quickbites/challenge-engine/internal/token"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

type testEnv struct {
	mgr     *Manager
	store   *Store
	orders  *order.MemoryGateway
	coupons *reward.MemoryCouponRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store := NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cat, err := catalog.NewSeededMemoryCatalog()
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	orders := order.NewMemoryGateway()
	coupons := reward.NewMemoryCouponRepository()
	tracker, err := performance.NewTracker(performance.NewMemoryRepository(), orders, store, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	issuer, err := reward.NewIssuer(coupons, tracker, zap.NewNop())
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	tokens, err := token.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	mgr, err := NewManager(store, cat, orders, tracker, issuer, tokens, Config{
		SessionTTL:      2 * time.Hour,
		GraceWindow:     10 * time.Minute,
		ExposeSolutions: true,
		PlayURL:         "https://play.example.com",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return &testEnv{mgr: mgr, store: store, orders: orders, coupons: coupons}
}

func (e *testEnv) start(t *testing.T, userID, orderID string, ct domain.ChallengeType) *challengedto.StartResult {
	t.Helper()
	e.orders.PutOrder(orderID, userID, domain.OrderOutForDelivery)
	res, err := e.mgr.Start(context.Background(), userID, orderID, domain.DifficultyEasy, ct)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return res
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var derr challengedto.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return derr.Code
}

func TestStartAndGetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)
	if res.Token == "" || res.SessionID == "" {
		t.Fatalf("missing token or session id: %+v", res)
	}
	if res.PlayURL == "" {
		t.Fatalf("expected play url")
	}
	info, err := env.mgr.GetStatus(ctx, res.Token, nil)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if info.Status != string(domain.SessionActive) || info.OrderID != "o1" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestSingleActiveSessionPerOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.start(t, "u1", "o1", domain.ChallengeCoding)

	second, err := env.mgr.Start(ctx, "u1", "o1", domain.DifficultyEasy, domain.ChallengeCoding)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected rejoin of existing session, got %s vs %s", second.SessionID, first.SessionID)
	}
	if second.Token == "" {
		t.Fatalf("rejoin must issue a fresh token")
	}
}

func TestStartReclaimsOrderAfterTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.start(t, "u1", "o1", domain.ChallengeCoding)
	if _, err := env.mgr.Fail(ctx, first.Token); err != nil {
		t.Fatalf("fail: %v", err)
	}
	second, err := env.mgr.Start(ctx, "u1", "o1", domain.DifficultyEasy, domain.ChallengeCoding)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatalf("expected a new session after the holder went terminal")
	}
}

func TestDeliveryExpiresSessionHard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	env.orders.SetStatus("o1", domain.OrderDelivered)

	_, err := env.mgr.GetStatus(ctx, res.Token, nil)
	if code := errCode(t, err); code != challengedto.CodeSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED, got %s", code)
	}

	sess, err := env.store.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.Status != domain.SessionExpired || !sess.DeliveredExpiry {
		t.Fatalf("expected hard expiry persisted, got %+v", sess)
	}

	// Delivered expiry is irreversible: a later poll must not reactivate.
	_, err = env.mgr.GetStatus(ctx, res.Token, nil)
	if code := errCode(t, err); code != challengedto.CodeSessionExpired {
		t.Fatalf("expected expiry to stick, got %s", code)
	}
}

func TestSoftTimeoutReactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	// Simulate the wall-clock backstop firing while the order is in transit.
	_, err := env.store.Mutate(ctx, res.SessionID, func(cur *domain.ChallengeSession) error {
		cur.Status = domain.SessionExpired
		cur.ExpiresAt = time.Now().Add(-time.Minute)
		return nil
	})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	info, err := env.mgr.GetStatus(ctx, res.Token, nil)
	if err != nil {
		t.Fatalf("expected reactivation, got %v", err)
	}
	if info.Status != string(domain.SessionActive) {
		t.Fatalf("expected ACTIVE after grace, got %s", info.Status)
	}
	if !info.ExpiresAt.After(time.Now().Add(5 * time.Minute)) {
		t.Fatalf("grace deadline too close: %v", info.ExpiresAt)
	}
}

func TestCompleteMintsRewardOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	rw, err := env.mgr.Complete(ctx, res.Token)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rw == nil || rw.Code == "" || rw.DiscountPct != 5 {
		t.Fatalf("unexpected reward: %+v", rw)
	}
	if got := env.orders.ChallengeStatus("o1"); got != domain.OutcomeCompleted {
		t.Fatalf("order not annotated: %s", got)
	}

	// Replay of complete on a WON session must not mint a second coupon.
	_, err = env.mgr.Complete(ctx, res.Token)
	if code := errCode(t, err); code != challengedto.CodeSessionExpired {
		t.Fatalf("expected replay rejection, got %s", code)
	}
	if n := len(env.coupons.ByUser("u1")); n != 1 {
		t.Fatalf("expected exactly one coupon, got %d", n)
	}
}

func TestCompleteLosesRaceToDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	env.orders.SetStatus("o1", domain.OrderDelivered)

	_, err := env.mgr.Complete(ctx, res.Token)
	if code := errCode(t, err); code != challengedto.CodeTooLate {
		t.Fatalf("expected TOO_LATE, got %s", code)
	}
	sess, _ := env.store.Get(ctx, res.SessionID)
	if sess.Status != domain.SessionExpired || !sess.DeliveredExpiry {
		t.Fatalf("expected hard expiry before the error, got %+v", sess)
	}
	if n := len(env.coupons.ByUser("u1")); n != 0 {
		t.Fatalf("no coupon expected, got %d", n)
	}
}

func TestRecordResultFailureAfterDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	// Failures inside an open window are not terminal.
	ack, err := env.mgr.RecordResult(ctx, res.Token, false)
	if err != nil || !ack.OK || ack.Closed {
		t.Fatalf("open-window failure should be retryable: ack=%+v err=%v", ack, err)
	}

	env.orders.SetStatus("o1", domain.OrderDelivered)
	_, err = env.mgr.RecordResult(ctx, res.Token, false)
	if code := errCode(t, err); code != challengedto.CodeTooLate {
		t.Fatalf("expected TOO_LATE, got %s", code)
	}
	if got := env.orders.ChallengeStatus("o1"); got != domain.OutcomeFailedAfterDelivery {
		t.Fatalf("expected FAILED_AFTER_DELIVERY marker, got %s", got)
	}
	sess, _ := env.store.Get(ctx, res.SessionID)
	if sess.Status != domain.SessionExpired || !sess.DeliveredExpiry {
		t.Fatalf("expected hard expiry, got %+v", sess)
	}
}

func TestFailIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeCoding)

	ack, err := env.mgr.Fail(ctx, res.Token)
	if err != nil || !ack.Closed {
		t.Fatalf("fail: ack=%+v err=%v", ack, err)
	}
	if got := env.orders.ChallengeStatus("o1"); got != domain.OutcomeFailed {
		t.Fatalf("expected FAILED marker, got %s", got)
	}

	// A LOST session acknowledges further results as closed.
	ack, err = env.mgr.RecordResult(ctx, res.Token, true)
	if err != nil || !ack.Closed {
		t.Fatalf("expected closed ack on terminal session: ack=%+v err=%v", ack, err)
	}
}

func TestChessSessionCarriesPuzzle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.start(t, "u1", "o1", domain.ChallengeChess)
	if res.Puzzle == nil {
		t.Fatalf("expected puzzle payload on chess session")
	}
	if res.Puzzle.Difficulty != string(domain.DifficultyEasy) {
		t.Fatalf("difficulty mismatch: %s", res.Puzzle.Difficulty)
	}
	if len(res.Puzzle.SolutionMoves) == 0 {
		t.Fatalf("solutions should be exposed in this configuration")
	}

	info, err := env.mgr.UpdatePuzzle(ctx, res.Token, "queen-king-ladder", domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("update puzzle: %v", err)
	}
	if info.Puzzle == nil || info.Puzzle.PuzzleID != "queen-king-ladder" {
		t.Fatalf("puzzle not swapped: %+v", info.Puzzle)
	}
	if info.Difficulty != string(domain.DifficultyMedium) {
		t.Fatalf("difficulty not moved: %s", info.Difficulty)
	}

	_, err = env.mgr.UpdatePuzzle(ctx, res.Token, "no-such-puzzle", "")
	if code := errCode(t, err); code != challengedto.CodePuzzleNotFound {
		t.Fatalf("expected PUZZLE_NOT_FOUND, got %s", code)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.mgr.GetStatus(context.Background(), "not-a-token", nil)
	if code := errCode(t, err); code != challengedto.CodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN, got %s", code)
	}
}

func TestRecentTerminalWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// One win, one hard expiry, one loss. The loss stays out of the window.
	res1 := env.start(t, "u9", "w1", domain.ChallengeCoding)
	if _, err := env.mgr.Complete(ctx, res1.Token); err != nil {
		t.Fatalf("complete: %v", err)
	}
	res2 := env.start(t, "u9", "w2", domain.ChallengeCoding)
	env.orders.SetStatus("w2", domain.OrderDelivered)
	if _, err := env.mgr.GetStatus(ctx, res2.Token, nil); err == nil {
		t.Fatalf("expected expiry")
	}
	res3 := env.start(t, "u9", "w3", domain.ChallengeCoding)
	if _, err := env.mgr.Fail(ctx, res3.Token); err != nil {
		t.Fatalf("fail: %v", err)
	}

	recent, err := env.store.RecentTerminal(ctx, "u9", 10)
	if err != nil {
		t.Fatalf("recent terminal: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 window entries (LOST excluded), got %d", len(recent))
	}
	if recent[0].OrderID != "w2" || recent[1].OrderID != "w1" {
		t.Fatalf("expected newest first, got %s then %s", recent[0].OrderID, recent[1].OrderID)
	}
}
