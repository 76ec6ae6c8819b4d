// Package order talks to the order collaborator. The engine reads the
// delivery status (the clock that can preempt a session), counts a user's
// orders for the difficulty selector, and writes only the challenge-status
// annotation field.
package order

import (
	"context"
	"errors"
	"sync"

	"github.com/quickbites/challenge-engine/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type Gateway interface {
	Status(ctx context.Context, orderID string) (domain.OrderStatus, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	SetChallengeStatus(ctx context.Context, orderID string, outcome domain.ChallengeOutcome) error
}

// MemoryGateway is an in-process fake for tests and local development.
type MemoryGateway struct {
	mu         sync.RWMutex
	statuses   map[string]domain.OrderStatus
	owners     map[string]string
	annotation map[string]domain.ChallengeOutcome
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		statuses:   make(map[string]domain.OrderStatus),
		owners:     make(map[string]string),
		annotation: make(map[string]domain.ChallengeOutcome),
	}
}

// PutOrder registers an order with its owner and delivery status.
func (g *MemoryGateway) PutOrder(orderID, userID string, status domain.OrderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = status
	g.owners[orderID] = userID
}

// SetStatus flips the delivery status, standing in for the driver's client.
func (g *MemoryGateway) SetStatus(orderID string, status domain.OrderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = status
}

func (g *MemoryGateway) Status(_ context.Context, orderID string) (domain.OrderStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.statuses[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return st, nil
}

func (g *MemoryGateway) CountByUser(_ context.Context, userID string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, owner := range g.owners {
		if owner == userID {
			n++
		}
	}
	return n, nil
}

func (g *MemoryGateway) SetChallengeStatus(_ context.Context, orderID string, outcome domain.ChallengeOutcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.statuses[orderID]; !ok {
		return ErrOrderNotFound
	}
	g.annotation[orderID] = outcome
	return nil
}

// ChallengeStatus returns the stored annotation, for assertions.
func (g *MemoryGateway) ChallengeStatus(orderID string) domain.ChallengeOutcome {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.annotation[orderID]
}
