package challengedto

import "time"

// PuzzlePayload is the puzzle slice handed to the playing surface.
// SolutionMoves is present only when the engine is configured to expose
// solutions (the frontend self-validation / "view solution" product choice).
type PuzzlePayload struct {
	PuzzleID      string   `json:"puzzle_id"`
	FEN           string   `json:"fen"`
	Hint          string   `json:"hint,omitempty"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"puzzle_type"`
	Difficulty    string   `json:"difficulty"`
	SolutionMoves []string `json:"solution_moves,omitempty"`
}

// StartResult is returned from Session Manager start. Token is the signed
// capability credential; everything after start presents it.
type StartResult struct {
	SessionID     string         `json:"session_id"`
	Token         string         `json:"token"`
	PlayURL       string         `json:"url,omitempty"`
	ChallengeType string         `json:"challenge_type"`
	Difficulty    string         `json:"difficulty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Puzzle        *PuzzlePayload `json:"puzzle,omitempty"`
}

type SessionInfo struct {
	UserID        string         `json:"user_id"`
	OrderID       string         `json:"order_id"`
	Difficulty    string         `json:"difficulty"`
	ChallengeType string         `json:"challenge_type"`
	Status        string         `json:"status"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Puzzle        *PuzzlePayload `json:"puzzle,omitempty"`
}

// VerifyResult is the chess verifier's judgment of a candidate move list.
type VerifyResult struct {
	Solved      bool     `json:"solved"`
	Message     string   `json:"message"`
	CurrentFEN  string   `json:"current_fen,omitempty"`
	IsCheck     bool     `json:"is_check"`
	IsCheckmate bool     `json:"is_checkmate"`
	ValidMoves  []string `json:"valid_moves,omitempty"`
}

// Reward is the coupon minted for a won session.
type Reward struct {
	Code        string    `json:"code"`
	Label       string    `json:"label"`
	DiscountPct int       `json:"discount_pct"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ResultAck acknowledges a recorded attempt on the coding path.
type ResultAck struct {
	OK     bool `json:"ok"`
	Closed bool `json:"closed,omitempty"`
}
