package catalog

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/quickbites/challenge-engine/internal/domain"
)

// MemoryCatalog serves puzzles from an in-process slice. It backs tests and
// deployments without a Mongo instance, seeded from the embedded collection.
type MemoryCatalog struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Puzzle
	byTier map[domain.Difficulty][]*domain.Puzzle
}

func NewMemoryCatalog(puzzles []domain.Puzzle) *MemoryCatalog {
	c := &MemoryCatalog{
		byID:   make(map[string]*domain.Puzzle),
		byTier: make(map[domain.Difficulty][]*domain.Puzzle),
	}
	for i := range puzzles {
		p := puzzles[i]
		c.byID[p.ID] = &p
		if Playable(&p) {
			c.byTier[p.Difficulty] = append(c.byTier[p.Difficulty], &p)
		}
	}
	return c
}

func (c *MemoryCatalog) RandomByDifficulty(_ context.Context, difficulty domain.Difficulty) (*domain.Puzzle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pool := c.byTier[difficulty]
	if len(pool) == 0 {
		return nil, ErrNoPuzzleAvailable
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return nil, err
	}
	cp := *pool[n.Int64()]
	return &cp, nil
}

func (c *MemoryCatalog) Get(_ context.Context, id string) (*domain.Puzzle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	if !ok {
		return nil, ErrPuzzleNotFound
	}
	cp := *p
	return &cp, nil
}
