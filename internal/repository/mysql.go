package repository

import (
	"context"
	"database/sql"
	"fmt"

	"raid-day/internal/model"

	"github.com/jmoiron/sqlx"
)

type MySQLRepository struct {
	db *sqlx.DB
}

func NewMySQLRepository(db *sqlx.DB) *MySQLRepository {
	return &MySQLRepository{
		db: db,
	}
}

// UpsertPlayer 插入或更新玩家的持久化数据
func (m *MySQLRepository) UpsertPlayer(ctx context.Context, player *model.PlayerData) error {
	query := `
		INSERT INTO players (user_id, instance_id, class, level, experience, session_damage, total_damage, special_ability_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			class = VALUES(class),
			level = VALUES(level),
			experience = VALUES(experience),
			session_damage = VALUES(session_damage),
			total_damage = VALUES(total_damage),
			special_ability_used = VALUES(special_ability_used),
			updated_at = NOW()
	`

	_, err := m.db.ExecContext(ctx, query,
		player.UserID, player.InstanceID, player.Class, player.Level,
		player.Experience, player.SessionDamage, player.TotalDamage, player.SpecialAbilityUsed)
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}

	return nil
}

// GetPlayer 获取玩家持久化数据
func (m *MySQLRepository) GetPlayer(ctx context.Context, instanceID, userID string) (*model.PlayerData, error) {
	var player model.PlayerData
	query := `SELECT user_id, instance_id, class, level, experience, session_damage, total_damage, special_ability_used, updated_at
			  FROM players WHERE instance_id = ? AND user_id = ?`

	err := m.db.GetContext(ctx, &player, query, instanceID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &player, nil
}

// GetPlayersByInstance 获取实例下所有玩家（用于排行榜重建）
func (m *MySQLRepository) GetPlayersByInstance(ctx context.Context, instanceID string) ([]*model.PlayerData, error) {
	var players []*model.PlayerData
	query := `SELECT user_id, instance_id, class, level, experience, session_damage, total_damage, special_ability_used, updated_at
			  FROM players WHERE instance_id = ?`

	err := m.db.SelectContext(ctx, &players, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players by instance: %w", err)
	}

	return players, nil
}

// GetInstanceIDs 获取所有已知实例ID（用于启动时重建）
func (m *MySQLRepository) GetInstanceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT instance_id FROM players`

	err := m.db.SelectContext(ctx, &ids, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance ids: %w", err)
	}

	return ids, nil
}

// RecordAttack 记录攻击历史
func (m *MySQLRepository) RecordAttack(ctx context.Context, instanceID string, event *model.AttackEvent) error {
	query := `
		INSERT INTO attack_history (instance_id, user_id, class, damage, is_critical, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.ExecContext(ctx, query,
		instanceID, event.UserID, event.Class, event.Damage, event.IsCritical, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record attack: %w", err)
	}

	return nil
}

// RecordBossDefeat 归档一次Boss击败
func (m *MySQLRepository) RecordBossDefeat(ctx context.Context, instanceID, day, bossName string, totalDamage int64) error {
	query := `
		INSERT INTO boss_defeats (instance_id, day, boss_name, total_damage, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`

	_, err := m.db.ExecContext(ctx, query, instanceID, day, bossName, totalDamage)
	if err != nil {
		return fmt.Errorf("failed to record boss defeat: %w", err)
	}

	return nil
}

// HealthCheck 健康检查
func (m *MySQLRepository) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close 关闭连接
func (m *MySQLRepository) Close() error {
	return m.db.Close()
}
