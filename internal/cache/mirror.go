package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/hub"
)

const (
	presenceTTL      = 60 * time.Second
	activityFeedSize = 100
	activityTTL      = 24 * time.Hour
)

// ActivityEntry is one row of a group's recent activity feed.
type ActivityEntry struct {
	GroupID   string    `json:"group_id"`
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror keeps a best-effort copy of call presence and group activity in
// Redis so other services can read them without asking the hub. Failures are
// logged and swallowed; the in-process state stays authoritative.
type Mirror struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// NewMirror connects to Redis and verifies the connection.
func NewMirror(cfg config.RedisConfig, log *zap.SugaredLogger) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Infof("[Redis] connected to %s", cfg.Addr)
	return &Mirror{client: client, log: log}, nil
}

func callPresenceKey(callID string, userID int64) string {
	return fmt.Sprintf("call:%s:presence:%d", callID, userID)
}

func activityKey(groupID string) string {
	return "group:" + groupID + ":activity"
}

// SetCallPresence writes the participant's state with a short TTL; a stale
// entry ages out on its own if the hub dies without cleaning up.
func (m *Mirror) SetCallPresence(ctx context.Context, callID string, userID int64, state hub.ParticipantState) {
	data, err := json.Marshal(state)
	if err != nil {
		m.log.Errorf("[Redis] marshal presence for call %s user %d: %v", callID, userID, err)
		return
	}
	if err := m.client.Set(ctx, callPresenceKey(callID, userID), data, presenceTTL).Err(); err != nil {
		m.log.Warnf("[Redis] set presence for call %s user %d: %v", callID, userID, err)
	}
}

// ClearCallPresence removes the participant's mirrored state.
func (m *Mirror) ClearCallPresence(ctx context.Context, callID string, userID int64) {
	if err := m.client.Del(ctx, callPresenceKey(callID, userID)).Err(); err != nil {
		m.log.Warnf("[Redis] clear presence for call %s user %d: %v", callID, userID, err)
	}
}

// AddGroupActivity prepends an activity entry to the group's capped feed.
func (m *Mirror) AddGroupActivity(ctx context.Context, groupID string, userID int64, kind string) {
	entry := ActivityEntry{
		GroupID:   groupID,
		UserID:    userID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		m.log.Errorf("[Redis] marshal activity for group %s: %v", groupID, err)
		return
	}

	key := activityKey(groupID)
	pipe := m.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, activityFeedSize-1)
	pipe.Expire(ctx, key, activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Warnf("[Redis] record activity for group %s: %v", groupID, err)
	}
}

// RecentActivity returns up to count newest-first activity entries.
func (m *Mirror) RecentActivity(ctx context.Context, groupID string, count int64) ([]ActivityEntry, error) {
	results, err := m.client.LRange(ctx, activityKey(groupID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity for group %s: %w", groupID, err)
	}

	entries := make([]ActivityEntry, 0, len(results))
	for _, data := range results {
		var e ActivityEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Health pings Redis.
func (m *Mirror) Health(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
