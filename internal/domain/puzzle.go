package domain

// PuzzleCategory determines how the verifier judges a solved position.
type PuzzleCategory string

const (
	PuzzleCheckmate PuzzleCategory = "checkmate"
	PuzzleTactical  PuzzleCategory = "tactical"
	PuzzleEndgame   PuzzleCategory = "endgame"
)

// DefaultOpeningPlacement is the piece-placement field of the standard start
// position. A catalog entry whose starting position equals it is seed-data
// rot, not a playable puzzle.
const DefaultOpeningPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// Puzzle is an immutable chess challenge definition, curated offline.
type Puzzle struct {
	ID            string         `json:"id" bson:"_id,omitempty"`
	FEN           string         `json:"fen" bson:"fen"`
	SolutionMoves []string       `json:"solution_moves" bson:"solution_moves"`
	Difficulty    Difficulty     `json:"difficulty" bson:"difficulty"`
	Category      PuzzleCategory `json:"category" bson:"puzzle_type"`
	Hint          string         `json:"hint,omitempty" bson:"hint,omitempty"`
	Description   string         `json:"description,omitempty" bson:"description,omitempty"`
}
