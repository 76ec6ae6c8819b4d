package domain

import "time"

// Difficulty is the adaptive challenge tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ChallengeType selects the playing surface bound to a session.
type ChallengeType string

const (
	ChallengeCoding ChallengeType = "coding"
	ChallengeChess  ChallengeType = "chess"
)

// SessionStatus is the challenge session lifecycle state.
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionWon     SessionStatus = "WON"
	SessionExpired SessionStatus = "EXPIRED"
	SessionLost    SessionStatus = "LOST"
)

func (s SessionStatus) Terminal() bool { return s != SessionActive }

// ChallengeSession is a lease on a challenge, bound to exactly one order.
// Sessions are never deleted; terminal records stay as an audit trail.
type ChallengeSession struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	OrderID       string        `json:"order_id"`
	Difficulty    Difficulty    `json:"difficulty"`
	ChallengeType ChallengeType `json:"challenge_type"`
	PuzzleID      string        `json:"puzzle_id,omitempty"`
	Status        SessionStatus `json:"status"`
	// DeliveredExpiry marks the hard, irreversible expiry observed when the
	// linked order reached delivered. A plain EXPIRED status without this flag
	// is a soft wall-clock timeout and may be reactivated while the order is
	// still in transit.
	DeliveredExpiry bool      `json:"delivered_expiry,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SoftExpired reports whether the session sits in the reversible timeout
// state: marked EXPIRED (or past its deadline) without a delivered expiry.
func (s *ChallengeSession) SoftExpired(now time.Time) bool {
	if s.DeliveredExpiry {
		return false
	}
	return s.Status == SessionExpired || (s.Status == SessionActive && !s.ExpiresAt.After(now))
}
