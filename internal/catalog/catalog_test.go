package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/quickbites/challenge-engine/internal/domain"
)

func TestSeedPuzzlesWellFormed(t *testing.T) {
	puzzles, err := SeedPuzzles()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(puzzles) == 0 {
		t.Fatalf("empty seed set")
	}
	byTier := map[domain.Difficulty]int{}
	for _, p := range puzzles {
		if !Playable(&p) {
			t.Fatalf("puzzle %s not playable", p.ID)
		}
		if !p.Difficulty.Valid() {
			t.Fatalf("puzzle %s: bad difficulty %q", p.ID, p.Difficulty)
		}
		byTier[p.Difficulty]++
	}
	for _, tier := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
		if byTier[tier] == 0 {
			t.Fatalf("no puzzles for tier %s", tier)
		}
	}
}

func TestMemoryCatalogFiltersByTier(t *testing.T) {
	cat, err := NewSeededMemoryCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		p, err := cat.RandomByDifficulty(ctx, domain.DifficultyMedium)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		if p.Difficulty != domain.DifficultyMedium {
			t.Fatalf("got %s puzzle from medium pick", p.Difficulty)
		}
	}
}

func TestMemoryCatalogGet(t *testing.T) {
	cat, err := NewSeededMemoryCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	ctx := context.Background()
	p, err := cat.Get(ctx, "scholars-mate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Category != domain.PuzzleCheckmate {
		t.Fatalf("unexpected category %s", p.Category)
	}
	if _, err := cat.Get(ctx, "missing"); !errors.Is(err, ErrPuzzleNotFound) {
		t.Fatalf("expected ErrPuzzleNotFound, got %v", err)
	}
}

func TestEmptyTierReportsNoPuzzle(t *testing.T) {
	cat := NewMemoryCatalog([]domain.Puzzle{{
		ID:            "only-easy",
		FEN:           "6k1/5ppp/8/8/8/8/8/4R2K w - - 0 1",
		SolutionMoves: []string{"e1e8"},
		Category:      domain.PuzzleCheckmate,
		Difficulty:    domain.DifficultyEasy,
	}})
	if _, err := cat.RandomByDifficulty(context.Background(), domain.DifficultyHard); !errors.Is(err, ErrNoPuzzleAvailable) {
		t.Fatalf("expected ErrNoPuzzleAvailable, got %v", err)
	}
}

func TestPlayableRejectsDefectiveSeeds(t *testing.T) {
	if Playable(&domain.Puzzle{ID: "no-solution", FEN: "8/8/8/8/8/8/8/K6k w - - 0 1"}) {
		t.Fatalf("puzzle without solution must not be playable")
	}
	opening := domain.DefaultOpeningPlacement + " w KQkq - 0 1"
	if Playable(&domain.Puzzle{ID: "untouched", FEN: opening, SolutionMoves: []string{"e2e4"}}) {
		t.Fatalf("default opening position must not be playable")
	}
}
