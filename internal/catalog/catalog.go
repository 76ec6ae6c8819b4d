// Package catalog serves the curated chess puzzle collection. Puzzles are
// created offline and read-only at request time.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/quickbites/challenge-engine/internal/domain"
)

var (
	ErrNoPuzzleAvailable = errors.New("no puzzle available for difficulty")
	ErrPuzzleNotFound    = errors.New("puzzle not found")
)

type Catalog interface {
	// RandomByDifficulty picks uniformly at random among playable puzzles of
	// the given tier.
	RandomByDifficulty(ctx context.Context, difficulty domain.Difficulty) (*domain.Puzzle, error)
	Get(ctx context.Context, id string) (*domain.Puzzle, error)
}

// Playable filters out seed-data defects: a puzzle must carry a non-empty
// solution and a starting position that is not the default opening position.
func Playable(p *domain.Puzzle) bool {
	if p == nil || len(p.SolutionMoves) == 0 {
		return false
	}
	fen := strings.TrimSpace(p.FEN)
	if fen == "" {
		return false
	}
	placement := strings.Fields(fen)[0]
	return placement != domain.DefaultOpeningPlacement
}
