// Package httpapi exposes the challenge engine over a small JSON API. The
// playing surface polls these endpoints; there is no push channel.
package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/catalog"
	"github.com/quickbites/challenge-engine/internal/domain"
	"github.com/quickbites/challenge-engine/internal/session"
	"github.com/quickbites/challenge-engine/internal/verifier"
	"github.com/quickbites/challenge-engine/pkg/challengedto"
)

type Server struct {
	app             *fiber.App
	manager         *session.Manager
	catalog         catalog.Catalog
	verifier        *verifier.Verifier
	exposeSolutions bool
	logger          *zap.Logger
}

func NewServer(mgr *session.Manager, cat catalog.Catalog, v *verifier.Verifier, exposeSolutions bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app:             fiber.New(fiber.Config{DisableStartupMessage: true}),
		manager:         mgr,
		catalog:         cat,
		verifier:        v,
		exposeSolutions: exposeSolutions,
		logger:          logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	ch := api.Group("/challenges")
	ch.Post("/start", s.handleStart)
	ch.Get("/session", s.handleSession)
	ch.Put("/session/puzzle", s.handleUpdatePuzzle)
	ch.Post("/complete", s.handleComplete)
	ch.Post("/result", s.handleResult)
	ch.Post("/fail", s.handleFail)

	chess := api.Group("/chess")
	chess.Get("/puzzle/:difficulty", s.handleRandomPuzzle)
	chess.Post("/verify", s.handleVerify)

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }

type startRequest struct {
	UserID        string `json:"user_id"`
	OrderID       string `json:"order_id"`
	Difficulty    string `json:"difficulty"`
	ChallengeType string `json:"challenge_type"`
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.OrderID) == "" {
		return badRequest(c, "user_id and order_id are required")
	}
	res, err := s.manager.Start(c.Context(), req.UserID, req.OrderID,
		domain.Difficulty(strings.TrimSpace(req.Difficulty)),
		domain.ChallengeType(strings.TrimSpace(req.ChallengeType)))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	var override *session.PuzzleOverride
	if pid := strings.TrimSpace(c.Query("puzzle_id")); pid != "" {
		override = &session.PuzzleOverride{
			PuzzleID:   pid,
			Difficulty: domain.Difficulty(strings.TrimSpace(c.Query("difficulty"))),
		}
	}
	info, err := s.manager.GetStatus(c.Context(), s.token(c), override)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(info)
}

type updatePuzzleRequest struct {
	Token      string `json:"token"`
	PuzzleID   string `json:"puzzle_id"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleUpdatePuzzle(c *fiber.Ctx) error {
	var req updatePuzzleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tok := req.Token
	if tok == "" {
		tok = s.token(c)
	}
	info, err := s.manager.UpdatePuzzle(c.Context(), tok, req.PuzzleID,
		domain.Difficulty(strings.TrimSpace(req.Difficulty)))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(info)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleComplete(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tok := req.Token
	if tok == "" {
		tok = s.token(c)
	}
	reward, err := s.manager.Complete(c.Context(), tok)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": "WON", "reward": reward})
}

type resultRequest struct {
	Token  string `json:"token"`
	Passed bool   `json:"passed"`
}

func (s *Server) handleResult(c *fiber.Ctx) error {
	var req resultRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tok := req.Token
	if tok == "" {
		tok = s.token(c)
	}
	ack, err := s.manager.RecordResult(c.Context(), tok, req.Passed)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(ack)
}

func (s *Server) handleFail(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tok := req.Token
	if tok == "" {
		tok = s.token(c)
	}
	ack, err := s.manager.Fail(c.Context(), tok)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(ack)
}

// handleRandomPuzzle serves a puzzle outside any session, for casual play.
func (s *Server) handleRandomPuzzle(c *fiber.Ctx) error {
	diff := domain.Difficulty(strings.ToLower(strings.TrimSpace(c.Params("difficulty"))))
	if !diff.Valid() {
		return badRequest(c, "unknown difficulty")
	}
	p, err := s.catalog.RandomByDifficulty(c.Context(), diff)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(s.puzzlePayload(p))
}

type verifyRequest struct {
	PuzzleID string   `json:"puzzle_id"`
	Moves    []string `json:"moves"`
}

// handleVerify judges a candidate move list against a puzzle, outside any
// session.
func (s *Server) handleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	p, err := s.catalog.Get(c.Context(), strings.TrimSpace(req.PuzzleID))
	if err != nil {
		return s.writeError(c, err)
	}
	res, err := s.verifier.Verify(p, req.Moves)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) token(c *fiber.Ctx) string {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func (s *Server) puzzlePayload(p *domain.Puzzle) *challengedto.PuzzlePayload {
	payload := &challengedto.PuzzlePayload{
		PuzzleID:    p.ID,
		FEN:         p.FEN,
		Hint:        p.Hint,
		Description: p.Description,
		Category:    string(p.Category),
		Difficulty:  string(p.Difficulty),
	}
	if s.exposeSolutions {
		payload.SolutionMoves = p.SolutionMoves
	}
	return payload
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var derr challengedto.DomainError
	if errors.As(err, &derr) {
		return c.Status(statusFor(derr.Code)).JSON(fiber.Map{"error": derr})
	}
	if errors.Is(err, catalog.ErrNoPuzzleAvailable) {
		return c.Status(fiber.StatusNotFound).JSON(errBody(challengedto.CodeNoPuzzleAvailable, "no puzzle available"))
	}
	if errors.Is(err, catalog.ErrPuzzleNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(errBody(challengedto.CodePuzzleNotFound, "puzzle not found"))
	}
	s.logger.Error("request_failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(errBody("INTERNAL", "internal error"))
}

func statusFor(code string) int {
	switch code {
	case challengedto.CodeInvalidToken:
		return fiber.StatusUnauthorized
	case challengedto.CodeSessionNotFound, challengedto.CodePuzzleNotFound, challengedto.CodeNoPuzzleAvailable:
		return fiber.StatusNotFound
	case challengedto.CodeSessionExpired, challengedto.CodeTooLate:
		return fiber.StatusGone
	case challengedto.CodeInvalidMoveFormat:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errBody("BAD_REQUEST", msg))
}

func errBody(code, msg string) fiber.Map {
	return fiber.Map{"error": fiber.Map{"code": code, "message": msg}}
}
