package presence

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager tracks which users are currently connected to each whiteboard
// session, in Redis so the answer holds across instances. The in-process
// hub stays authoritative for broadcast; this is observability only.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager connects to Redis and verifies the connection.
func NewManager(addr, password string, db int, ttl time.Duration) (*Manager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Presence] Connected to %s", addr)
	return &Manager{client: rdb, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("whiteboard:session:%s:members", sessionID)
}

// Join records the user as connected to the session.
func (m *Manager) Join(ctx context.Context, sessionID string, userID int64) error {
	key := sessionKey(sessionID)
	if err := m.client.SAdd(ctx, key, userID).Err(); err != nil {
		return err
	}
	// TTL guards against orphaned entries after a crash; heartbeats renew it.
	return m.client.Expire(ctx, key, m.ttl).Err()
}

// Leave removes the user from the session's member set.
func (m *Manager) Leave(ctx context.Context, sessionID string, userID int64) error {
	return m.client.SRem(ctx, sessionKey(sessionID), userID).Err()
}

// Heartbeat renews the member set's TTL while connections are alive.
func (m *Manager) Heartbeat(ctx context.Context, sessionID string) error {
	return m.client.Expire(ctx, sessionKey(sessionID), m.ttl).Err()
}

// Members lists the users currently connected to the session.
func (m *Manager) Members(ctx context.Context, sessionID string) ([]int64, error) {
	vals, err := m.client.SMembers(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClearSession drops the session's member set (session deleted).
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, sessionKey(sessionID)).Err()
}

// Health checks the Redis connection.
func (m *Manager) Health(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
