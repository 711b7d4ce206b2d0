package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TandemFM/model"

	"github.com/redis/go-redis/v9"
)

const (
	roomPlaybackKey = "room:%s:playback"    // String: last playback snapshot JSON
	roomViewKey     = "room:%s:view"        // String: last view snapshot JSON
	roomPresenceKey = "room:%s:presence:%d" // String: heartbeat key per user
	roomPresenceSet = "room:%s:online_users"
	roomTTL         = 24 * time.Hour
	presenceTTL     = 60 * time.Second
)

// RoomCache holds a room's last-known state and presence heartbeats in Redis.
// The snapshot side backs reconnection recovery: a client joining an
// established room reconciles against the last published snapshot instead of
// starting blind.
type RoomCache struct {
	client *redis.Client
}

// NewRoomCache creates a room cache on an injected Redis client.
func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

// ========== 播放状态 ==========

// SavePlayback stores the room's latest playback snapshot.
func (c *RoomCache) SavePlayback(ctx context.Context, roomID string, snap *model.PlaybackSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := fmt.Sprintf(roomPlaybackKey, roomID)
	return c.client.Set(ctx, key, data, roomTTL).Err()
}

// LoadPlayback returns the room's last playback snapshot, or nil when none
// has been published yet.
func (c *RoomCache) LoadPlayback(ctx context.Context, roomID string) (*model.PlaybackSnapshot, error) {
	key := fmt.Sprintf(roomPlaybackKey, roomID)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var snap model.PlaybackSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveView stores the room's latest view snapshot.
func (c *RoomCache) SaveView(ctx context.Context, roomID string, snap *model.ViewSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal view snapshot: %w", err)
	}

	key := fmt.Sprintf(roomViewKey, roomID)
	return c.client.Set(ctx, key, data, roomTTL).Err()
}

// LoadView returns the room's last view snapshot, or nil when none exists.
func (c *RoomCache) LoadView(ctx context.Context, roomID string) (*model.ViewSnapshot, error) {
	key := fmt.Sprintf(roomViewKey, roomID)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var snap model.ViewSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ========== 心跳在线状态管理 ==========

// UpdatePresence refreshes a user's heartbeat in a room.
func (c *RoomCache) UpdatePresence(ctx context.Context, roomID string, userID int64) error {
	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
	onlineSetKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, presenceKey, time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, onlineSetKey, userID)
	pipe.Expire(ctx, onlineSetKey, roomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemovePresence drops a user's heartbeat on leave.
func (c *RoomCache) RemovePresence(ctx context.Context, roomID string, userID int64) error {
	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
	onlineSetKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, presenceKey)
	pipe.SRem(ctx, onlineSetKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// IsUserOnline reports whether a user's heartbeat is still live.
func (c *RoomCache) IsUserOnline(ctx context.Context, roomID string, userID int64) (bool, error) {
	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
	exists, err := c.client.Exists(ctx, presenceKey).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// OnlineUsers returns users with live heartbeats, pruning expired entries
// from the online set as a side effect.
func (c *RoomCache) OnlineUsers(ctx context.Context, roomID string) ([]int64, error) {
	onlineSetKey := fmt.Sprintf(roomPresenceSet, roomID)

	members, err := c.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []int64{}, nil
	}

	active := make([]int64, 0, len(members))
	expired := make([]interface{}, 0)

	for _, memberStr := range members {
		userID, err := strconv.ParseInt(memberStr, 10, 64)
		if err != nil {
			continue
		}

		presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
		exists, err := c.client.Exists(ctx, presenceKey).Result()
		if err != nil {
			continue
		}

		if exists > 0 {
			active = append(active, userID)
		} else {
			expired = append(expired, memberStr)
		}
	}

	if len(expired) > 0 {
		c.client.SRem(ctx, onlineSetKey, expired...)
	}

	return active, nil
}

// ========== 清理 ==========

// ClearRoom removes all cached state for a room.
func (c *RoomCache) ClearRoom(ctx context.Context, roomID string) error {
	keys := []string{
		fmt.Sprintf(roomPlaybackKey, roomID),
		fmt.Sprintf(roomViewKey, roomID),
		fmt.Sprintf(roomPresenceSet, roomID),
	}
	return c.client.Del(ctx, keys...).Err()
}
