// Package verifier judges candidate move sequences against puzzle solutions
// using full chess-rule semantics. It is stateless: the session manager calls
// it and owns everything else.
package verifier

import (
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

// UCI move shape: from-square, to-square, optional promotion piece.
var uciMoveRe = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

type Verifier struct{}

func New() *Verifier { return &Verifier{} }

// Verify replays candidateMoves from the puzzle's starting position. The
// first illegal move short-circuits with solved=false and the currently legal
// moves as a hint. Whether a finished replay counts as solved depends on the
// puzzle category: checkmate puzzles must end in mate on the solution's
// position, tactical and endgame puzzles must reach the solution's position
// in the same number of moves.
func (v *Verifier) Verify(puzzle *domain.Puzzle, candidateMoves []string) (*challengedto.VerifyResult, error) {
	if puzzle == nil {
		return nil, fmt.Errorf("nil puzzle")
	}
	for _, mv := range candidateMoves {
		if !uciMoveRe.MatchString(strings.ToLower(strings.TrimSpace(mv))) {
			return nil, challengedto.Errf(challengedto.CodeInvalidMoveFormat, fmt.Sprintf("malformed move %q", mv))
		}
	}

	game, err := gameFromFEN(puzzle.FEN)
	if err != nil {
		return nil, fmt.Errorf("puzzle position: %w", err)
	}

	var lastSAN string
	for _, mv := range candidateMoves {
		uci := strings.ToLower(strings.TrimSpace(mv))
		pos := game.Position()
		decoded, derr := nchess.UCINotation{}.Decode(pos, uci)
		if derr != nil {
			return &challengedto.VerifyResult{
				Solved:     false,
				Message:    fmt.Sprintf("Invalid move: %s", mv),
				CurrentFEN: game.FEN(),
				ValidMoves: legalMovesUCI(game),
			}, nil
		}
		lastSAN = nchess.AlgebraicNotation{}.Encode(pos, decoded)
		if err := game.Move(decoded, nil); err != nil {
			return &challengedto.VerifyResult{
				Solved:     false,
				Message:    fmt.Sprintf("Invalid move: %s", mv),
				CurrentFEN: game.FEN(),
				ValidMoves: legalMovesUCI(game),
			}, nil
		}
	}

	solutionFEN, err := replaySolution(puzzle)
	if err != nil {
		return nil, err
	}

	isCheckmate := game.Method() == nchess.Checkmate
	result := &challengedto.VerifyResult{
		CurrentFEN:  game.FEN(),
		IsCheck:     strings.HasSuffix(lastSAN, "+") || strings.HasSuffix(lastSAN, "#"),
		IsCheckmate: isCheckmate,
	}

	positionsMatch := NormalizeFEN(game.FEN()) == NormalizeFEN(solutionFEN)
	countMatches := len(candidateMoves) == len(puzzle.SolutionMoves)

	switch puzzle.Category {
	case domain.PuzzleCheckmate:
		result.Solved = isCheckmate && countMatches && positionsMatch
		if result.Solved {
			result.Message = "Checkmate! Puzzle solved correctly!"
		} else if !isCheckmate {
			result.Message = "Not checkmate yet. Keep trying!"
		} else {
			result.Message = "Checkmate, but not the intended line. Try again!"
		}
	default:
		result.Solved = countMatches && positionsMatch
		if result.Solved {
			result.Message = "Puzzle solved correctly!"
		} else {
			result.Message = "Moves don't match the solution. Try again!"
		}
	}
	return result, nil
}

// SelfCheck replays the puzzle's own solution through Verify; a curated
// puzzle must validate against itself.
func (v *Verifier) SelfCheck(puzzle *domain.Puzzle) error {
	res, err := v.Verify(puzzle, puzzle.SolutionMoves)
	if err != nil {
		return err
	}
	if !res.Solved {
		return fmt.Errorf("puzzle %s: solution does not solve its own puzzle: %s", puzzle.ID, res.Message)
	}
	return nil
}

// NormalizeFEN keeps board placement, side to move, castling rights and the
// en passant square, dropping the move-clock counters. Several legal move
// orders can reach an equivalent position that differs only in clocks.
func NormalizeFEN(fen string) string {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 4 {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:4], " ")
}

func replaySolution(puzzle *domain.Puzzle) (string, error) {
	game, err := gameFromFEN(puzzle.FEN)
	if err != nil {
		return "", err
	}
	for _, mv := range puzzle.SolutionMoves {
		uci := strings.ToLower(strings.TrimSpace(mv))
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return "", fmt.Errorf("puzzle %s: solution move %q is illegal: %w", puzzle.ID, mv, err)
		}
	}
	return game.FEN(), nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return nchess.NewGame(option), nil
}

func legalMovesUCI(game *nchess.Game) []string {
	moves := game.ValidMoves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}
