package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"raid-day/internal/boss"
	"raid-day/internal/cache"
	"raid-day/internal/combat"
	"raid-day/internal/config"
	"raid-day/internal/model"
	"raid-day/internal/repository"
	"raid-day/pkg/logger"
)

// 定义服务级别的错误
var (
	ErrPlayerNotFound    = fmt.Errorf("player not found")
	ErrBossNotFound      = fmt.Errorf("boss not found")
	ErrBossDefeated      = fmt.Errorf("boss already defeated")
	ErrNoEnergy          = fmt.Errorf("not enough energy")
	ErrAbilityUsed       = fmt.Errorf("special ability already used this session")
	ErrSessionNotExpired = fmt.Errorf("session refresh not yet available")
	ErrInvalidClass      = fmt.Errorf("invalid character class")
	ErrInvalidDamage     = fmt.Errorf("reported damage outside plausible range")
	ErrInvalidBoard      = fmt.Errorf("invalid leaderboard kind")
)

type GameService struct {
	redisRepo *repository.RedisRepository
	mysqlRepo *repository.MySQLRepository
	cfg       *config.Config

	policy combat.Policy
	energy *combat.EnergyManager
	calc   *combat.Calculator

	enableCache bool
	cache       *cache.LocalCache

	// 已知实例注册表，轮换巡检用
	instances sync.Map

	logger *logger.Logger
}

func NewGameService(redisRepo *repository.RedisRepository, mysqlRepo *repository.MySQLRepository, cfg *config.Config) *GameService {
	policy := combat.DefaultPolicy()

	service := &GameService{
		redisRepo:   redisRepo,
		mysqlRepo:   mysqlRepo,
		cfg:         cfg,
		policy:      policy,
		energy:      combat.NewEnergyManager(policy),
		calc:        combat.NewCalculator(policy, rand.New(rand.NewSource(time.Now().UnixNano()))),
		enableCache: cfg.EnableCache,
		logger:      logger.NewLogger("game_service"),
	}

	if cfg.EnableCache {
		// 轮询型读接口的TTL不必超过最短轮询周期
		service.cache = cache.NewLocalCache(cfg.CacheSize, 3*time.Second)
	}

	return service
}

// Policy 暴露当前战斗策略（只读）
func (s *GameService) Policy() combat.Policy {
	return s.policy
}

// Attack 处理一次普通攻击。
// 服务端是能量与Boss血量的唯一权威：客户端上报的伤害只在可信区间内被接受，
// 能量扣减与Boss扣血作为一个逻辑单元执行，任何前置校验失败都不产生部分变更。
func (s *GameService) Attack(ctx context.Context, instanceID, userID string, req *model.AttackRequest) (*model.AttackResult, error) {
	if !model.ValidClass(req.Class) {
		return nil, ErrInvalidClass
	}

	if err := s.ensureBoss(ctx, instanceID); err != nil {
		return nil, err
	}

	state, err := s.redisRepo.GetBossState(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load boss state: %w", err)
	}
	if state.Defeated() {
		return nil, ErrBossDefeated
	}

	now := time.Now()
	player, err := s.loadOrCreatePlayer(ctx, instanceID, userID, req.Class, now)
	if err != nil {
		return nil, err
	}
	player.Class = req.Class

	// 惰性推进冷却，并检查2小时会话门槛
	s.energy.Advance(&player.Energy, now)
	s.maybeResetSession(ctx, player, now)

	if req.Damage <= 0 || req.Damage > s.calc.MaxPlausible(player.Class, player.Level) {
		return nil, ErrInvalidDamage
	}

	if !s.energy.CanAttack(&player.Energy) {
		return nil, ErrNoEnergy
	}

	// 到这里所有前置校验已通过。先落Boss伤害（原子扣减），再持久化玩家；
	// 扣血失败时玩家状态原样丢弃，能量不会被白扣。
	s.energy.Consume(&player.Energy)

	newHP, err := s.redisRepo.DamageBoss(ctx, instanceID, req.Damage)
	if err != nil {
		return nil, fmt.Errorf("failed to apply boss damage: %w", err)
	}

	phase, enraged := boss.ComputePhase(newHP, state.MaxHP, s.policy)

	xpGained := req.Damage / 10
	defeated := newHP <= 0
	if defeated {
		if bonus := s.processVictory(ctx, instanceID, state); bonus > 0 {
			xpGained += bonus
		}
	}

	player.SessionDamage += req.Damage
	player.TotalDamage += req.Damage
	player.GainExperience(xpGained)
	player.UpdatedAt = now

	if err := s.redisRepo.SavePlayer(ctx, player); err != nil {
		// Boss伤害已生效但玩家没有扣到能量，偏向不让玩家吃亏
		s.logger.Error("Failed to persist player after attack",
			"instanceID", instanceID,
			"userID", userID,
			"error", err)
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	s.recordAttackSideEffects(ctx, instanceID, player, req.Damage, req.IsCritical, now)

	return &model.AttackResult{
		Success:         true,
		NewBossHP:       newHP,
		BossPhase:       phase,
		IsEnraged:       enraged,
		BossDefeated:    defeated,
		XPGained:        xpGained,
		EnergyRemaining: player.Energy.Current,
	}, nil
}

// Special 处理特殊技能：每会话一次，需要至少3点能量并消耗3点
func (s *GameService) Special(ctx context.Context, instanceID, userID string, req *model.SpecialRequest) (*model.SpecialResult, error) {
	if !model.ValidClass(req.Class) {
		return nil, ErrInvalidClass
	}

	if err := s.ensureBoss(ctx, instanceID); err != nil {
		return nil, err
	}

	state, err := s.redisRepo.GetBossState(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load boss state: %w", err)
	}
	if state.Defeated() {
		return nil, ErrBossDefeated
	}

	now := time.Now()
	player, err := s.loadOrCreatePlayer(ctx, instanceID, userID, req.Class, now)
	if err != nil {
		return nil, err
	}
	player.Class = req.Class

	s.energy.Advance(&player.Energy, now)
	s.maybeResetSession(ctx, player, now)

	if player.SpecialAbilityUsed {
		return nil, ErrAbilityUsed
	}

	if req.Damage <= 0 || req.Damage > s.calc.MaxPlausibleSpecial(player.Class, player.Level) {
		return nil, ErrInvalidDamage
	}

	if !s.energy.ConsumeSpecial(&player.Energy) {
		return nil, ErrNoEnergy
	}
	player.SpecialAbilityUsed = true

	newHP, err := s.redisRepo.DamageBoss(ctx, instanceID, req.Damage)
	if err != nil {
		return nil, fmt.Errorf("failed to apply boss damage: %w", err)
	}

	xpGained := req.Damage / 10
	if newHP <= 0 {
		if bonus := s.processVictory(ctx, instanceID, state); bonus > 0 {
			xpGained += bonus
		}
	}

	player.SessionDamage += req.Damage
	player.TotalDamage += req.Damage
	player.GainExperience(xpGained)
	player.UpdatedAt = now

	if err := s.redisRepo.SavePlayer(ctx, player); err != nil {
		s.logger.Error("Failed to persist player after special",
			"instanceID", instanceID,
			"userID", userID,
			"error", err)
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	s.recordAttackSideEffects(ctx, instanceID, player, req.Damage, false, now)

	return &model.SpecialResult{
		Status:    "ok",
		Damage:    req.Damage,
		NewBossHP: newHP,
	}, nil
}

// RefreshSession 显式会话刷新：2小时硬门槛之前一律拒绝
func (s *GameService) RefreshSession(ctx context.Context, instanceID, userID string) (*model.PlayerSnapshot, error) {
	player, err := s.redisRepo.GetPlayer(ctx, instanceID, userID)
	if err != nil {
		if err == repository.ErrPlayerNotFound {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}

	now := time.Now()
	if !s.energy.SessionExpired(&player.Energy, now) {
		return nil, ErrSessionNotExpired
	}

	s.resetSession(ctx, player, now)
	player.UpdatedAt = now

	if err := s.redisRepo.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	s.logger.Info("Session refreshed",
		"instanceID", instanceID,
		"userID", userID)

	return s.snapshot(player, now), nil
}

// BossStatus 获取Boss共享状态（10秒轮询目标）
func (s *GameService) BossStatus(ctx context.Context, instanceID string) (*model.BossState, error) {
	if s.enableCache {
		if cached, ok := s.cache.GetBossState(instanceID); ok {
			return cached, nil
		}
	}

	if err := s.ensureBoss(ctx, instanceID); err != nil {
		return nil, err
	}

	state, err := s.redisRepo.GetBossState(ctx, instanceID)
	if err != nil {
		if err == repository.ErrBossNotFound {
			return nil, ErrBossNotFound
		}
		return nil, err
	}

	state.Phase, state.IsEnraged = boss.ComputePhase(state.CurrentHP, state.MaxHP, s.policy)

	active, err := s.redisRepo.ActivePlayerCount(ctx, instanceID, time.Now())
	if err != nil {
		s.logger.Warn("Failed to count active players", "instanceID", instanceID, "error", err)
	}
	state.ActivePlayers = active

	if s.enableCache {
		s.cache.SetBossState(instanceID, state)
	}

	return state, nil
}

// CommunityStats 获取社区统计（5秒轮询目标）
func (s *GameService) CommunityStats(ctx context.Context, instanceID string) (*model.CommunityStats, error) {
	if s.enableCache {
		if cached, ok := s.cache.GetCommunityStats(instanceID); ok {
			return cached, nil
		}
	}

	now := time.Now()
	events, err := s.redisRepo.RecentAttacks(ctx, instanceID, s.cfg.RecentAttacksKept)
	if err != nil {
		return nil, err
	}

	perMinute := 0
	cutoff := now.Add(-1 * time.Minute)
	for _, event := range events {
		if event.Timestamp.After(cutoff) {
			perMinute++
		}
	}

	active, err := s.redisRepo.ActivePlayerCount(ctx, instanceID, now)
	if err != nil {
		s.logger.Warn("Failed to count active players", "instanceID", instanceID, "error", err)
	}

	var totalDamage int64
	if state, err := s.redisRepo.GetBossState(ctx, instanceID); err == nil {
		totalDamage = state.TotalDamageDealt
	}

	stats := &model.CommunityStats{
		AttacksPerMinute: perMinute,
		RecentAttacks:    events,
		ActivePlayers:    active,
		TotalDamageDealt: totalDamage,
	}

	if s.enableCache {
		s.cache.SetCommunityStats(instanceID, stats)
	}

	return stats, nil
}

// PlayerSnapshot 获取玩家完整快照（15秒轮询目标，用于纠正客户端漂移）
func (s *GameService) PlayerSnapshot(ctx context.Context, instanceID, userID string) (*model.PlayerSnapshot, error) {
	player, err := s.redisRepo.GetPlayer(ctx, instanceID, userID)
	if err != nil {
		if err == repository.ErrPlayerNotFound {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}

	now := time.Now()
	s.energy.Advance(&player.Energy, now)
	s.maybeResetSession(ctx, player, now)

	if err := s.redisRepo.SavePlayer(ctx, player); err != nil {
		s.logger.Warn("Failed to persist advanced energy state",
			"instanceID", instanceID,
			"userID", userID,
			"error", err)
	}

	return s.snapshot(player, now), nil
}

// Leaderboard 获取排行榜前N名，by 取 session 或 total
func (s *GameService) Leaderboard(ctx context.Context, instanceID, by string, n int) ([]*model.LeaderboardEntry, error) {
	if by != "session" && by != "total" {
		return nil, ErrInvalidBoard
	}
	if n <= 0 {
		return nil, fmt.Errorf("invalid N: %d", n)
	}
	if n > s.cfg.LeaderboardMaxN {
		n = s.cfg.LeaderboardMaxN
	}

	if s.enableCache {
		if cached, ok := s.cache.GetTopN(instanceID, by, n); ok {
			return cached, nil
		}
	}

	scores, err := s.redisRepo.TopDamage(ctx, instanceID, by, int64(n))
	if err != nil {
		return nil, err
	}

	entries := make([]*model.LeaderboardEntry, 0, len(scores))
	for i, z := range scores {
		userID, _ := z.Member.(string)

		entry := &model.LeaderboardEntry{
			UserID: userID,
			Rank:   i + 1,
		}
		if by == "session" {
			entry.SessionDamage = int64(z.Score)
		} else {
			entry.TotalDamage = int64(z.Score)
		}

		// 玩家详情缺失不致命，榜单降级为只有分数
		if player, err := s.redisRepo.GetPlayer(ctx, instanceID, userID); err == nil {
			entry.Class = player.Class
			entry.Level = player.Level
			entry.SessionDamage = player.SessionDamage
			entry.TotalDamage = player.TotalDamage
		}

		entries = append(entries, entry)
	}

	if s.enableCache {
		s.cache.SetTopN(instanceID, by, n, entries)
	}

	return entries, nil
}

// RotateBoss 强制轮换到当日Boss（管理端点与巡检任务共用）
func (s *GameService) RotateBoss(ctx context.Context, instanceID string) (*model.BossState, error) {
	now := time.Now()
	rotation := boss.RotationFor(now.Weekday())

	if err := s.redisRepo.InitBoss(ctx, instanceID, rotation.Name, rotation.MaxHP, boss.DayKey(now)); err != nil {
		return nil, err
	}

	if s.enableCache {
		s.cache.InvalidateInstance(instanceID)
	}

	s.instances.Store(instanceID, struct{}{})
	return s.BossStatus(ctx, instanceID)
}

// StartRotationLoop 后台巡检：跨天后把已知实例轮换到当日Boss。
// 随 ctx 取消而退出，攻击路径本身从不触发轮换。
func (s *GameService) StartRotationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RotationCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rotation loop stopped")
			return
		case <-ticker.C:
			s.rotateStaleInstances(ctx)
		}
	}
}

func (s *GameService) rotateStaleInstances(ctx context.Context) {
	today := boss.DayKey(time.Now())

	s.instances.Range(func(key, _ interface{}) bool {
		instanceID := key.(string)

		day, err := s.redisRepo.BossDay(ctx, instanceID)
		if err != nil {
			s.logger.Warn("Failed to read boss day", "instanceID", instanceID, "error", err)
			return true
		}
		if day == today {
			return true
		}

		if _, err := s.RotateBoss(ctx, instanceID); err != nil {
			s.logger.Error("Failed to rotate boss", "instanceID", instanceID, "error", err)
			return true
		}
		s.logger.Info("Boss rotated for new day", "instanceID", instanceID, "day", today)
		return true
	})
}

// RebuildLeaderboards 从 MySQL 重建 Redis 排行榜（用于数据恢复）
func (s *GameService) RebuildLeaderboards(ctx context.Context) error {
	s.logger.Info("Starting leaderboard rebuild from MySQL")

	instanceIDs, err := s.mysqlRepo.GetInstanceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}

	total := 0
	for _, instanceID := range instanceIDs {
		players, err := s.mysqlRepo.GetPlayersByInstance(ctx, instanceID)
		if err != nil {
			s.logger.Warn("Failed to load players for rebuild", "instanceID", instanceID, "error", err)
			continue
		}

		for _, player := range players {
			if err := s.redisRepo.SetBoardScores(ctx, instanceID, player.UserID, player.SessionDamage, player.TotalDamage); err != nil {
				s.logger.Warn("Failed to restore board scores",
					"instanceID", instanceID,
					"userID", player.UserID,
					"error", err)
			}
		}
		total += len(players)
	}

	s.logger.Info("Leaderboard rebuild completed", "instances", len(instanceIDs), "playerCount", total)
	return nil
}

// CheckRedisHealth 检查 Redis 健康状态
func (s *GameService) CheckRedisHealth(ctx context.Context) bool {
	if err := s.redisRepo.HealthCheck(ctx); err != nil {
		s.logger.Error("Redis health check failed", "error", err)
		return false
	}
	return true
}

// CheckMySQLHealth 检查 MySQL 健康状态
func (s *GameService) CheckMySQLHealth(ctx context.Context) bool {
	if err := s.mysqlRepo.HealthCheck(ctx); err != nil {
		s.logger.Error("MySQL health check failed", "error", err)
		return false
	}
	return true
}

// GetCacheStats 获取缓存统计
func (s *GameService) GetCacheStats() map[string]interface{} {
	if s.cache != nil {
		return s.cache.GetStats()
	}
	return map[string]interface{}{
		"enabled": false,
	}
}

// 内部方法

// ensureBoss 惰性初始化：实例首次被访问时创建当日Boss
func (s *GameService) ensureBoss(ctx context.Context, instanceID string) error {
	s.instances.Store(instanceID, struct{}{})

	exists, err := s.redisRepo.BossExists(ctx, instanceID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := time.Now()
	rotation := boss.RotationFor(now.Weekday())
	return s.redisRepo.InitBoss(ctx, instanceID, rotation.Name, rotation.MaxHP, boss.DayKey(now))
}

// loadOrCreatePlayer 读取玩家，不存在时以满能量初始状态创建
func (s *GameService) loadOrCreatePlayer(ctx context.Context, instanceID, userID string, class model.CharacterClass, now time.Time) (*model.PlayerData, error) {
	player, err := s.redisRepo.GetPlayer(ctx, instanceID, userID)
	if err == nil {
		return player, nil
	}
	if err != repository.ErrPlayerNotFound {
		return nil, err
	}

	player = &model.PlayerData{
		UserID:     userID,
		InstanceID: instanceID,
		Class:      class,
		Level:      1,
		Energy:     s.energy.NewState(now),
		UpdatedAt:  now,
	}
	return player, nil
}

// maybeResetSession 2小时窗口已过时自动重置会话
func (s *GameService) maybeResetSession(ctx context.Context, player *model.PlayerData, now time.Time) {
	if !s.energy.SessionExpired(&player.Energy, now) {
		return
	}
	s.resetSession(ctx, player, now)
}

func (s *GameService) resetSession(ctx context.Context, player *model.PlayerData, now time.Time) {
	s.energy.ResetSession(&player.Energy, now)
	player.SpecialAbilityUsed = false
	player.SessionDamage = 0

	if err := s.redisRepo.ResetSessionScore(ctx, player.InstanceID, player.UserID); err != nil {
		s.logger.Warn("Failed to reset session board score",
			"instanceID", player.InstanceID,
			"userID", player.UserID,
			"error", err)
	}
}

// processVictory 击败处理：幂等标记保证副作用至多执行一次，返回击杀奖励经验
func (s *GameService) processVictory(ctx context.Context, instanceID string, state *model.BossState) int64 {
	claimed, err := s.redisRepo.ClaimVictory(ctx, instanceID, state.Day)
	if err != nil {
		s.logger.Error("Failed to claim victory", "instanceID", instanceID, "error", err)
		return 0
	}
	if !claimed {
		return 0
	}

	if err := s.mysqlRepo.RecordBossDefeat(ctx, instanceID, state.Day, state.Name, state.MaxHP); err != nil {
		s.logger.Error("Failed to archive boss defeat", "instanceID", instanceID, "error", err)
	}

	s.logger.Info("Boss defeated",
		"instanceID", instanceID,
		"boss", state.Name,
		"day", state.Day)

	// 击杀一击的额外经验
	return 50
}

// recordAttackSideEffects 攻击被接受后的附属写入，失败只降级不回滚
func (s *GameService) recordAttackSideEffects(ctx context.Context, instanceID string, player *model.PlayerData, damage int64, isCritical bool, now time.Time) {
	event := &model.AttackEvent{
		UserID:     player.UserID,
		Class:      player.Class,
		Damage:     damage,
		IsCritical: isCritical,
		Timestamp:  now,
	}

	if err := s.redisRepo.AddDamageScores(ctx, instanceID, player.UserID, damage); err != nil {
		s.logger.Warn("Failed to update leaderboards", "instanceID", instanceID, "error", err)
	}
	if err := s.redisRepo.PushAttackEvent(ctx, instanceID, event, s.cfg.RecentAttacksKept); err != nil {
		s.logger.Warn("Failed to push attack event", "instanceID", instanceID, "error", err)
	}
	if err := s.redisRepo.TouchActive(ctx, instanceID, player.UserID, now); err != nil {
		s.logger.Warn("Failed to touch active player", "instanceID", instanceID, "error", err)
	}
	if err := s.mysqlRepo.UpsertPlayer(ctx, player); err != nil {
		s.logger.Warn("Failed to upsert player in mysql", "userID", player.UserID, "error", err)
	}
	if err := s.mysqlRepo.RecordAttack(ctx, instanceID, event); err != nil {
		s.logger.Warn("Failed to record attack history", "instanceID", instanceID, "error", err)
	}

	if s.enableCache {
		s.cache.InvalidateInstance(instanceID)
	}
}

// snapshot 构造玩家快照，附带各槽位剩余冷却
func (s *GameService) snapshot(player *model.PlayerData, now time.Time) *model.PlayerSnapshot {
	remaining := make([]int64, len(player.Energy.CooldownsMS))
	copy(remaining, player.Energy.CooldownsMS)

	return &model.PlayerSnapshot{
		Player:            player,
		CooldownRemaining: remaining,
		ServerTime:        now,
	}
}
