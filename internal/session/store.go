package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/quickbites/challenge-engine/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("challenge session not found")
	ErrStaleSession    = errors.New("session changed concurrently")
)

// Store keeps challenge sessions as JSON blobs in Redis. Sessions are never
// deleted and carry no TTL: terminal records remain as an audit trail.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func NewStoreFromURL(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Create persists a new session and indexes it under its user.
func (s *Store) Create(ctx context.Context, sess *domain.ChallengeSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := s.rdb.LPush(ctx, idxUserKey(sess.UserID), sess.ID).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.ChallengeSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess domain.ChallengeSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Mutate applies fn to the stored session under optimistic concurrency.
// fn runs against a fresh read; a concurrent write aborts with
// ErrStaleSession and the caller decides whether to retry.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*domain.ChallengeSession) error) (*domain.ChallengeSession, error) {
	key := sessionKey(id)
	var updated *domain.ChallengeSession
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var cur domain.ChallengeSession
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if err := fn(&cur); err != nil {
			return err
		}
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		updated = &cur
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrStaleSession
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ClaimOrder conditionally binds an order to a session id. When the order is
// already claimed it reports the holder's id instead, enforcing the
// single-active-session-per-order invariant at create time.
func (s *Store) ClaimOrder(ctx context.Context, orderID, sessionID string) (string, bool, error) {
	key := idxOrderKey(orderID)
	ok, err := s.rdb.SetNX(ctx, key, sessionID, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim order: %w", err)
	}
	if ok {
		return sessionID, true, nil
	}
	holder, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		// Claim released between SetNX and Get; take it.
		if err := s.rdb.Set(ctx, key, sessionID, 0).Err(); err != nil {
			return "", false, err
		}
		return sessionID, true, nil
	}
	if err != nil {
		return "", false, err
	}
	return holder, false, nil
}

// ReassignOrder replaces the order claim when the previous holder is
// terminal.
func (s *Store) ReassignOrder(ctx context.Context, orderID, sessionID string) error {
	return s.rdb.Set(ctx, idxOrderKey(orderID), sessionID, 0).Err()
}

// RecentTerminal returns up to limit terminal (WON or EXPIRED) sessions for
// the user, newest first. LOST sessions are excluded from the rolling window.
func (s *Store) RecentTerminal(ctx context.Context, userID string, limit int) ([]domain.ChallengeSession, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.rdb.LRange(ctx, idxUserKey(userID), 0, int64(limit*10)).Result()
	if err != nil {
		return nil, err
	}
	var out []domain.ChallengeSession
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if sess.Status != domain.SessionWon && sess.Status != domain.SessionExpired {
			continue
		}
		out = append(out, *sess)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func sessionKey(id string) string     { return "challenge:session:" + strings.TrimSpace(id) }
func idxUserKey(userID string) string { return "challenge:index:user:" + strings.TrimSpace(userID) }
func idxOrderKey(orderID string) string {
	return "challenge:index:order:" + strings.TrimSpace(orderID)
}
