package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/quickbites/challenge-engine/internal/domain"
)

var ErrDuplicateCode = errors.New("coupon code already exists")

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) CouponRepository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, coupon *domain.Coupon) error {
	if coupon == nil {
		return fmt.Errorf("nil coupon payload")
	}
	const query = `
		INSERT INTO coupons (user_id, code, label, discount_pct, expires_at, applied, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (code) DO NOTHING
		RETURNING code`

	var code sql.NullString
	err := r.db.QueryRowContext(
		ctx,
		query,
		coupon.UserID,
		coupon.Code,
		coupon.Label,
		coupon.DiscountPct,
		coupon.ExpiresAt,
		coupon.CreatedAt,
	).Scan(&code)
	if err == sql.ErrNoRows || (err == nil && !code.Valid) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// MemoryCouponRepository backs tests and DB-less development runs.
type MemoryCouponRepository struct {
	mu      sync.RWMutex
	byCode  map[string]*domain.Coupon
	history []*domain.Coupon
}

func NewMemoryCouponRepository() *MemoryCouponRepository {
	return &MemoryCouponRepository{byCode: make(map[string]*domain.Coupon)}
}

func (m *MemoryCouponRepository) Insert(_ context.Context, coupon *domain.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byCode[coupon.Code]; exists {
		return ErrDuplicateCode
	}
	cp := *coupon
	m.byCode[coupon.Code] = &cp
	m.history = append(m.history, &cp)
	return nil
}

// ByUser lists minted coupons for assertions.
func (m *MemoryCouponRepository) ByUser(userID string) []*domain.Coupon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Coupon
	for _, c := range m.history {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}
