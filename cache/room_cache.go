package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"DuetFM/db"
	"DuetFM/model"

	"github.com/go-redis/redis/v8"
)

const (
	roomMembersKey  = "room:%s:members"  // Set: 房间内用户名集合
	roomPlaybackKey = "room:%s:playback" // String: 播放状态 JSON
	roomHistoryKey  = "room:%s:messages" // List: 聊天历史（最新在前）
	roomTTL         = 24 * time.Hour
	historyCap      = 100
)

// RoomCache 房间状态的Redis镜像
// 只做 write-through，供运维查看在线房间，永远不在热路径上读取。
// 所有操作在未配置Redis时静默降级为 no-op。
type RoomCache struct {
	client *redis.Client
}

// NewRoomCache 创建房间缓存
func NewRoomCache() *RoomCache {
	return &RoomCache{client: db.RedisClient}
}

// AddMember 记录成员加入
func (c *RoomCache) AddMember(ctx context.Context, room, username string) error {
	if c.client == nil {
		return nil
	}

	key := fmt.Sprintf(roomMembersKey, room)
	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, username)
	pipe.Expire(ctx, key, roomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveMember 记录成员离开
func (c *RoomCache) RemoveMember(ctx context.Context, room, username string) error {
	if c.client == nil {
		return nil
	}

	key := fmt.Sprintf(roomMembersKey, room)
	return c.client.SRem(ctx, key, username).Err()
}

// DropRoom 房间销毁时清理全部镜像键
func (c *RoomCache) DropRoom(ctx context.Context, room string) error {
	if c.client == nil {
		return nil
	}

	return c.client.Del(ctx,
		fmt.Sprintf(roomMembersKey, room),
		fmt.Sprintf(roomPlaybackKey, room),
		fmt.Sprintf(roomHistoryKey, room),
	).Err()
}

// SetPlayback 镜像播放状态
func (c *RoomCache) SetPlayback(ctx context.Context, room string, state *model.PlaybackState) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal playback state: %w", err)
	}

	key := fmt.Sprintf(roomPlaybackKey, room)
	return c.client.Set(ctx, key, data, roomTTL).Err()
}

// AppendMessage 镜像聊天消息，保持与内存历史相同的100条上限
func (c *RoomCache) AppendMessage(ctx context.Context, room string, msg *model.ChatMessage) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := fmt.Sprintf(roomHistoryKey, room)
	pipe := c.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyCap-1)
	pipe.Expire(ctx, key, roomTTL)
	_, err = pipe.Exec(ctx)
	return err
}
