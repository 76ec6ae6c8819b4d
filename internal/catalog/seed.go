package catalog

import (
	"embed"
	"fmt"
	"io/fs"

	yaml "gopkg.in/yaml.v3"

	"github.com/quickbites/challenge-engine/internal/domain"
)

//go:embed puzzles.yaml
var seedFiles embed.FS

type seedFile struct {
	Puzzles []seedPuzzle `yaml:"puzzles"`
}

type seedPuzzle struct {
	ID            string   `yaml:"id"`
	FEN           string   `yaml:"fen"`
	SolutionMoves []string `yaml:"solution_moves"`
	Difficulty    string   `yaml:"difficulty"`
	Category      string   `yaml:"puzzle_type"`
	Hint          string   `yaml:"hint"`
	Description   string   `yaml:"description"`
}

// SeedPuzzles decodes the embedded curated collection.
func SeedPuzzles() ([]domain.Puzzle, error) {
	raw, err := fs.ReadFile(seedFiles, "puzzles.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded puzzles: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse embedded puzzles: %w", err)
	}
	puzzles := make([]domain.Puzzle, 0, len(file.Puzzles))
	for _, sp := range file.Puzzles {
		p := domain.Puzzle{
			ID:            sp.ID,
			FEN:           sp.FEN,
			SolutionMoves: append([]string(nil), sp.SolutionMoves...),
			Difficulty:    domain.Difficulty(sp.Difficulty),
			Category:      domain.PuzzleCategory(sp.Category),
			Hint:          sp.Hint,
			Description:   sp.Description,
		}
		if !p.Difficulty.Valid() {
			return nil, fmt.Errorf("puzzle %s: invalid difficulty %q", sp.ID, sp.Difficulty)
		}
		if !Playable(&p) {
			return nil, fmt.Errorf("puzzle %s: not playable (empty solution or default position)", sp.ID)
		}
		puzzles = append(puzzles, p)
	}
	return puzzles, nil
}

// NewSeededMemoryCatalog builds a memory catalog from the embedded set.
func NewSeededMemoryCatalog() (*MemoryCatalog, error) {
	puzzles, err := SeedPuzzles()
	if err != nil {
		return nil, err
	}
	return NewMemoryCatalog(puzzles), nil
}
