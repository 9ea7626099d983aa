package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"raid-day/internal/model"
	"raid-day/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	// Redis Key 模板，均以游戏实例ID作用域隔离
	bossHPKeyFmt        = "raid:%s:boss:hp"
	bossMetaKeyFmt      = "raid:%s:boss:meta"
	victoryKeyFmt       = "raid:%s:victory:%s"
	playerKeyFmt        = "raid:%s:player:%s"
	attackListKeyFmt    = "raid:%s:attacks"
	sessionBoardKeyFmt  = "raid:%s:lb:session"
	totalBoardKeyFmt    = "raid:%s:lb:total"
	activePlayersKeyFmt = "raid:%s:active"

	playerTTL     = 7 * 24 * time.Hour
	victoryTTL    = 48 * time.Hour
	activeWindow  = 5 * time.Minute
	boardBySess   = "session"
	boardByTotal  = "total"
)

type RedisRepository struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
		logger: logger.NewLogger("redis_repository"),
	}
}

// InitBoss 初始化（或轮换重置）当前实例的Boss。
// 会清空当日会话排行榜与最近攻击记录，总伤排行榜保留。
func (r *RedisRepository) InitBoss(ctx context.Context, instanceID, name string, maxHP int64, day string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(bossHPKeyFmt, instanceID), maxHP, 0)
	pipe.Del(ctx, fmt.Sprintf(bossMetaKeyFmt, instanceID))
	pipe.HSet(ctx, fmt.Sprintf(bossMetaKeyFmt, instanceID), map[string]interface{}{
		"name":         name,
		"max_hp":       maxHP,
		"day":          day,
		"total_damage": 0,
	})
	pipe.Del(ctx, fmt.Sprintf(attackListKeyFmt, instanceID))
	pipe.Del(ctx, fmt.Sprintf(sessionBoardKeyFmt, instanceID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to init boss in redis: %w", err)
	}

	r.logger.Info("Boss initialized",
		"instanceID", instanceID,
		"boss", name,
		"maxHP", maxHP,
		"day", day)
	return nil
}

// BossExists 检查实例是否已有Boss
func (r *RedisRepository) BossExists(ctx context.Context, instanceID string) (bool, error) {
	n, err := r.client.Exists(ctx, fmt.Sprintf(bossHPKeyFmt, instanceID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check boss existence: %w", err)
	}
	return n > 0, nil
}

// BossDay 获取当前Boss所属的轮换日
func (r *RedisRepository) BossDay(ctx context.Context, instanceID string) (string, error) {
	day, err := r.client.HGet(ctx, fmt.Sprintf(bossMetaKeyFmt, instanceID), "day").Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrBossNotFound
		}
		return "", fmt.Errorf("failed to get boss day: %w", err)
	}
	return day, nil
}

// DamageBoss 原子扣减共享Boss血量。
// 使用 DECRBY 而不是应用层读改写，并发扣血不会互相覆盖；
// 扣到负数时按0处理并回写地板值，两次并发扣减的合计依然生效。
func (r *RedisRepository) DamageBoss(ctx context.Context, instanceID string, amount int64) (int64, error) {
	hpKey := fmt.Sprintf(bossHPKeyFmt, instanceID)

	newHP, err := r.client.DecrBy(ctx, hpKey, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement boss hp: %w", err)
	}
	if newHP < 0 {
		newHP = 0
		// 地板回写是尽力而为的修复，失败只影响展示不影响正确性
		if err := r.client.Set(ctx, hpKey, 0, 0).Err(); err != nil {
			r.logger.Warn("Failed to clamp boss hp at zero", "instanceID", instanceID, "error", err)
		}
	}

	metaKey := fmt.Sprintf(bossMetaKeyFmt, instanceID)
	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, metaKey, "total_damage", amount)
	pipe.HSet(ctx, metaKey, "last_damage", time.Now().Unix())
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("Failed to update boss meta after damage", "instanceID", instanceID, "error", err)
	}

	return newHP, nil
}

// GetBossState 读取Boss共享状态（阶段由调用方根据血量比例推导）
func (r *RedisRepository) GetBossState(ctx context.Context, instanceID string) (*model.BossState, error) {
	hpStr, err := r.client.Get(ctx, fmt.Sprintf(bossHPKeyFmt, instanceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrBossNotFound
		}
		return nil, fmt.Errorf("failed to get boss hp: %w", err)
	}

	meta, err := r.client.HGetAll(ctx, fmt.Sprintf(bossMetaKeyFmt, instanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get boss meta: %w", err)
	}

	hp, _ := strconv.ParseInt(hpStr, 10, 64)
	if hp < 0 {
		hp = 0
	}
	maxHP, _ := strconv.ParseInt(meta["max_hp"], 10, 64)
	totalDamage, _ := strconv.ParseInt(meta["total_damage"], 10, 64)

	state := &model.BossState{
		Name:             meta["name"],
		CurrentHP:        hp,
		MaxHP:            maxHP,
		TotalDamageDealt: totalDamage,
		Day:              meta["day"],
	}
	if ts, err := strconv.ParseInt(meta["last_damage"], 10, 64); err == nil {
		state.LastDamageTime = time.Unix(ts, 0)
	}

	return state, nil
}

// ClaimVictory 认领击败事件。
// SETNX 保证多个并发请求同时观察到 HP<=0 时，胜利副作用至多执行一次。
func (r *RedisRepository) ClaimVictory(ctx context.Context, instanceID, day string) (bool, error) {
	claimed, err := r.client.SetNX(ctx, fmt.Sprintf(victoryKeyFmt, instanceID, day), time.Now().Unix(), victoryTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim victory: %w", err)
	}
	return claimed, nil
}

// GetPlayer 读取玩家数据
func (r *RedisRepository) GetPlayer(ctx context.Context, instanceID, userID string) (*model.PlayerData, error) {
	raw, err := r.client.Get(ctx, fmt.Sprintf(playerKeyFmt, instanceID, userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	var player model.PlayerData
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, fmt.Errorf("failed to decode player data: %w", err)
	}
	return &player, nil
}

// SavePlayer 写回玩家数据（单写者语义：只有玩家自己的请求会改写该键）
func (r *RedisRepository) SavePlayer(ctx context.Context, player *model.PlayerData) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to encode player data: %w", err)
	}

	key := fmt.Sprintf(playerKeyFmt, player.InstanceID, player.UserID)
	if err := r.client.Set(ctx, key, raw, playerTTL).Err(); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	return nil
}

// TouchActive 记录玩家活跃时间
func (r *RedisRepository) TouchActive(ctx context.Context, instanceID, userID string, now time.Time) error {
	key := fmt.Sprintf(activePlayersKeyFmt, instanceID)
	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.Unix()), Member: userID})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-activeWindow).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to touch active player: %w", err)
	}
	return nil
}

// ActivePlayerCount 统计最近5分钟内活跃的玩家数
func (r *RedisRepository) ActivePlayerCount(ctx context.Context, instanceID string, now time.Time) (int64, error) {
	key := fmt.Sprintf(activePlayersKeyFmt, instanceID)
	count, err := r.client.ZCount(ctx, key, strconv.FormatInt(now.Add(-activeWindow).Unix(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active players: %w", err)
	}
	return count, nil
}

// PushAttackEvent 追加攻击事件并裁剪到有界长度
func (r *RedisRepository) PushAttackEvent(ctx context.Context, instanceID string, event *model.AttackEvent, kept int) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode attack event: %w", err)
	}

	key := fmt.Sprintf(attackListKeyFmt, instanceID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(kept-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push attack event: %w", err)
	}
	return nil
}

// RecentAttacks 获取最近的攻击事件（新到旧）
func (r *RedisRepository) RecentAttacks(ctx context.Context, instanceID string, n int) ([]*model.AttackEvent, error) {
	raws, err := r.client.LRange(ctx, fmt.Sprintf(attackListKeyFmt, instanceID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent attacks: %w", err)
	}

	events := make([]*model.AttackEvent, 0, len(raws))
	for _, raw := range raws {
		var event model.AttackEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			r.logger.Warn("Skipping malformed attack event", "instanceID", instanceID, "error", err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// AddDamageScores 累加会话榜与总榜分数
func (r *RedisRepository) AddDamageScores(ctx context.Context, instanceID, userID string, damage int64) error {
	pipe := r.client.Pipeline()
	pipe.ZIncrBy(ctx, fmt.Sprintf(sessionBoardKeyFmt, instanceID), float64(damage), userID)
	pipe.ZIncrBy(ctx, fmt.Sprintf(totalBoardKeyFmt, instanceID), float64(damage), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add damage scores: %w", err)
	}
	return nil
}

// ResetSessionScore 会话刷新时清零该玩家的会话榜分数
func (r *RedisRepository) ResetSessionScore(ctx context.Context, instanceID, userID string) error {
	err := r.client.ZAdd(ctx, fmt.Sprintf(sessionBoardKeyFmt, instanceID), &redis.Z{
		Score:  0,
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to reset session score: %w", err)
	}
	return nil
}

// SetBoardScores 重建排行榜时直接写入分数
func (r *RedisRepository) SetBoardScores(ctx context.Context, instanceID, userID string, sessionDamage, totalDamage int64) error {
	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, fmt.Sprintf(sessionBoardKeyFmt, instanceID), &redis.Z{Score: float64(sessionDamage), Member: userID})
	pipe.ZAdd(ctx, fmt.Sprintf(totalBoardKeyFmt, instanceID), &redis.Z{Score: float64(totalDamage), Member: userID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set board scores: %w", err)
	}
	return nil
}

// TopDamage 获取排行榜前N名（按会话伤害或总伤害）
func (r *RedisRepository) TopDamage(ctx context.Context, instanceID, by string, n int64) ([]redis.Z, error) {
	key := fmt.Sprintf(totalBoardKeyFmt, instanceID)
	if by == boardBySess {
		key = fmt.Sprintf(sessionBoardKeyFmt, instanceID)
	}

	result, err := r.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top damage: %w", err)
	}
	return result, nil
}

// HealthCheck 健康检查
func (r *RedisRepository) HealthCheck(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	return err
}

// Close 关闭连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
