package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "sess:"
	accountKeyPrefix = "acct-sess:"
)

// SessionStore keeps sessions as JSON blobs with a TTL, plus one set per
// account indexing its session ids.
type SessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

// NewClient builds a go-redis client and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func sessionKey(id string) string        { return sessionKeyPrefix + id }
func accountKey(accountID string) string { return accountKeyPrefix + accountID }

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired: %w", domain.ErrValidation)
	}
	blob, err := json.Marshal(record(sess))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(sess.SessionID), blob, ttl)
		p.SAdd(ctx, accountKey(sess.AccountID), sess.SessionID)
		// All sessions share one TTL policy, so the newest one outlives the rest.
		p.Expire(ctx, accountKey(sess.AccountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	blob, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(blob)
}

func (s *SessionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	ids, err := s.rdb.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	blobs, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(blobs))
	var stale []interface{}
	for i, b := range blobs {
		str, ok := b.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if len(stale) > 0 {
		// Blobs expired through TTL; drop their ids from the index.
		s.rdb.SRem(ctx, accountKey(accountID), stale...)
	}
	return sessions, nil
}

// Delete removes a session. The DEL reply decides which of several
// concurrent callers wins; the rest get domain.ErrNotFound.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, sessionKey(sessionID))
		p.SRem(ctx, accountKey(sess.AccountID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (s *SessionStore) DeleteAllByAccount(ctx context.Context, accountID string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list session ids: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	var del *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(keys) > 0 {
			del = p.Del(ctx, keys...)
		}
		p.Del(ctx, accountKey(accountID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	if del == nil {
		return 0, nil
	}
	return int(del.Val()), nil
}

// sessionRecord is the stored shape; domain.Session hides the hash from JSON.
type sessionRecord struct {
	SessionID        string    `json:"session_id"`
	AccountID        string    `json:"account_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	IP               string    `json:"ip"`
	UserAgent        string    `json:"user_agent"`
	CreatedAt        time.Time `json:"created_at"`
}

func record(s *domain.Session) sessionRecord {
	return sessionRecord{
		SessionID:        s.SessionID,
		AccountID:        s.AccountID,
		RefreshTokenHash: s.RefreshTokenHash,
		ExpiresAt:        s.ExpiresAt,
		IP:               s.IP,
		UserAgent:        s.UserAgent,
		CreatedAt:        s.CreatedAt,
	}
}

func decode(blob []byte) (*domain.Session, error) {
	var r sessionRecord
	if err := json.Unmarshal(blob, &r); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		SessionID:        r.SessionID,
		AccountID:        r.AccountID,
		RefreshTokenHash: r.RefreshTokenHash,
		ExpiresAt:        r.ExpiresAt,
		IP:               r.IP,
		UserAgent:        r.UserAgent,
		CreatedAt:        r.CreatedAt,
	}, nil
}
