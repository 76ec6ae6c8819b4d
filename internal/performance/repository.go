package performance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quickbites/challenge-engine/internal/domain"
)

var ErrRecordNotFound = errors.New("performance record not found")

type Repository interface {
	Get(ctx context.Context, userID string) (*domain.PerformanceRecord, error)
	Upsert(ctx context.Context, rec *domain.PerformanceRecord) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, userID string) (*domain.PerformanceRecord, error) {
	const query = `
		SELECT user_id, total_orders, total_challenges, completed_challenges,
		       average_solve_time, last_difficulty, updated_at
		FROM user_performance
		WHERE user_id = $1`

	rec := &domain.PerformanceRecord{}
	var lastDifficulty sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.TotalOrders,
		&rec.TotalChallenges,
		&rec.CompletedChallenges,
		&rec.AverageSolveTime,
		&lastDifficulty,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get performance record: %w", err)
	}
	if lastDifficulty.Valid {
		rec.LastDifficulty = domain.Difficulty(lastDifficulty.String)
	}
	return rec, nil
}

func (r *repository) Upsert(ctx context.Context, rec *domain.PerformanceRecord) error {
	if rec == nil {
		return fmt.Errorf("nil performance record")
	}
	const query = `
		INSERT INTO user_performance (
			user_id,
			total_orders,
			total_challenges,
			completed_challenges,
			average_solve_time,
			last_difficulty,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_orders = EXCLUDED.total_orders,
			total_challenges = EXCLUDED.total_challenges,
			completed_challenges = EXCLUDED.completed_challenges,
			average_solve_time = EXCLUDED.average_solve_time,
			last_difficulty = EXCLUDED.last_difficulty,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.UserID,
		rec.TotalOrders,
		rec.TotalChallenges,
		rec.CompletedChallenges,
		rec.AverageSolveTime,
		string(rec.LastDifficulty),
	)
	if err != nil {
		return fmt.Errorf("upsert performance record: %w", err)
	}
	return nil
}
