package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
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
	"github.com/quickbites/challenge-engine/internal/session"
	"github.com/quickbites/challenge-engine/internal/token"
	"github.com/quickbites/challenge-engine/internal/verifier"
)

func newTestServer(t *testing.T) (*Server, *order.MemoryGateway) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store := session.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cat, err := catalog.NewSeededMemoryCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	orders := order.NewMemoryGateway()
	tracker, err := performance.NewTracker(performance.NewMemoryRepository(), orders, store, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	issuer, err := reward.NewIssuer(reward.NewMemoryCouponRepository(), tracker, zap.NewNop())
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	tokens, err := token.NewCodec("api-test-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	mgr, err := session.NewManager(store, cat, orders, tracker, issuer, tokens, session.Config{
		SessionTTL:      time.Hour,
		GraceWindow:     10 * time.Minute,
		ExposeSolutions: true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return NewServer(mgr, cat, verifier.New(), true, zap.NewNop()), orders
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func TestStartCompleteFlow(t *testing.T) {
	srv, orders := newTestServer(t)
	orders.PutOrder("o1", "u1", domain.OrderOutForDelivery)

	resp, raw := doJSON(t, srv, http.MethodPost, "/api/challenges/start", map[string]any{
		"user_id": "u1", "order_id": "o1", "difficulty": "easy", "challenge_type": "chess",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d: %s", resp.StatusCode, raw)
	}
	var started struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
		Puzzle    *struct {
			PuzzleID string `json:"puzzle_id"`
		} `json:"puzzle"`
	}
	if err := json.Unmarshal(raw, &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.Token == "" || started.Puzzle == nil {
		t.Fatalf("incomplete start payload: %s", raw)
	}

	resp, raw = doJSON(t, srv, http.MethodGet, "/api/challenges/session?token="+started.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status %d: %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, srv, http.MethodPost, "/api/challenges/complete", map[string]any{"token": started.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", resp.StatusCode, raw)
	}
	var completed struct {
		Status string `json:"status"`
		Reward struct {
			Code        string `json:"code"`
			DiscountPct int    `json:"discount_pct"`
		} `json:"reward"`
	}
	if err := json.Unmarshal(raw, &completed); err != nil {
		t.Fatalf("decode complete: %v", err)
	}
	if completed.Status != "WON" || completed.Reward.Code == "" || completed.Reward.DiscountPct != 5 {
		t.Fatalf("unexpected completion payload: %s", raw)
	}
}

func TestSessionGoneAfterDelivery(t *testing.T) {
	srv, orders := newTestServer(t)
	orders.PutOrder("o1", "u1", domain.OrderOutForDelivery)

	_, raw := doJSON(t, srv, http.MethodPost, "/api/challenges/start", map[string]any{
		"user_id": "u1", "order_id": "o1", "difficulty": "easy", "challenge_type": "coding",
	})
	var started struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}

	orders.SetStatus("o1", domain.OrderDelivered)
	resp, raw := doJSON(t, srv, http.MethodGet, "/api/challenges/session?token="+started.Token, nil)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 after delivery, got %d: %s", resp.StatusCode, raw)
	}
}

func TestStandaloneChessEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, raw := doJSON(t, srv, http.MethodGet, "/api/chess/puzzle/easy", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("puzzle status %d: %s", resp.StatusCode, raw)
	}
	var puzzle struct {
		PuzzleID string `json:"puzzle_id"`
		FEN      string `json:"fen"`
	}
	if err := json.Unmarshal(raw, &puzzle); err != nil {
		t.Fatalf("decode puzzle: %v", err)
	}
	if puzzle.PuzzleID == "" || puzzle.FEN == "" {
		t.Fatalf("incomplete puzzle payload: %s", raw)
	}

	resp, raw = doJSON(t, srv, http.MethodPost, "/api/chess/verify", map[string]any{
		"puzzle_id": "scholars-mate", "moves": []string{"f3f7"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", resp.StatusCode, raw)
	}
	var verdict struct {
		Solved      bool `json:"solved"`
		IsCheckmate bool `json:"is_checkmate"`
	}
	if err := json.Unmarshal(raw, &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.Solved || !verdict.IsCheckmate {
		t.Fatalf("expected solved mate: %s", raw)
	}

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/chess/puzzle/impossible", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown difficulty, got %d", resp.StatusCode)
	}
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, srv, http.MethodGet, "/api/challenges/session?token=bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
