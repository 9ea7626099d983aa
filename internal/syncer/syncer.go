package syncer

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"raid-day/internal/model"
	"raid-day/pkg/logger"
	"raid-day/pkg/utils"
)

// Config 各同步流的节奏参数
type Config struct {
	BossInterval      time.Duration
	CommunityInterval time.Duration
	PlayerInterval    time.Duration

	// 连续失败时的退避上限与轮询抖动比例
	MaxBackoff     time.Duration
	JitterFraction float64
}

// DefaultConfig 默认节奏：Boss 10秒、社区 5秒、玩家 15秒
func DefaultConfig() Config {
	return Config{
		BossInterval:      10 * time.Second,
		CommunityInterval: 5 * time.Second,
		PlayerInterval:    15 * time.Second,
		MaxBackoff:        2 * time.Minute,
		JitterFraction:    0.2,
	}
}

// Callbacks 同步结果的回调。字段为 nil 时对应事件被忽略。
type Callbacks struct {
	OnBossUpdate      func(state *model.BossState, significant bool)
	OnCommunityUpdate func(stats *model.CommunityStats)
	OnPlayerUpdate    func(snapshot *model.PlayerSnapshot)
	OnError           func(stream string, err error)
}

// Syncer 客户端同步层。
// 三条互相独立的轮询流共用一个 ctx：Start 启动全部，取消 ctx 确定性地
// 拆除全部，不存在能活过会话的散落定时器。单条流的失败只影响它自己，
// 并触发带上限的指数退避，避免对服务端形成请求风暴。
type Syncer struct {
	client *Client
	cfg    Config
	cb     Callbacks
	logger *logger.Logger

	mu       sync.Mutex
	lastBoss *model.BossState

	wg sync.WaitGroup
}

func New(client *Client, cfg Config, cb Callbacks) *Syncer {
	return &Syncer{
		client: client,
		cfg:    cfg,
		cb:     cb,
		logger: logger.NewLogger("syncer"),
	}
}

// Start 启动全部同步流，立即返回。用 Wait 等待拆除完成。
func (s *Syncer) Start(ctx context.Context) {
	s.runStream(ctx, "boss", s.cfg.BossInterval, s.pollBoss)
	s.runStream(ctx, "community", s.cfg.CommunityInterval, s.pollCommunity)
	s.runStream(ctx, "player", s.cfg.PlayerInterval, s.pollPlayer)
}

// Wait 阻塞到所有同步流退出
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) runStream(ctx context.Context, name string, base time.Duration, poll func(context.Context) error) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		failures := 0
		timer := time.NewTimer(utils.Jitter(base, s.cfg.JitterFraction, rng))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sync stream stopped", "stream", name)
				return
			case <-timer.C:
			}

			err := poll(ctx)

			// 会话已结束时迟到的响应直接丢弃，不再回调
			select {
			case <-ctx.Done():
				s.logger.Debug("Sync stream stopped", "stream", name)
				return
			default:
			}

			if err != nil {
				failures++
				s.logger.Warn("Sync poll failed",
					"stream", name,
					"consecutiveFailures", failures,
					"error", err)
				if s.cb.OnError != nil {
					s.cb.OnError(name, err)
				}
			} else {
				failures = 0
			}

			timer.Reset(utils.Jitter(backoffDelay(base, failures, s.cfg.MaxBackoff), s.cfg.JitterFraction, rng))
		}
	}()
}

func (s *Syncer) pollBoss(ctx context.Context) error {
	state, err := s.client.BossStatus(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.lastBoss
	s.lastBoss = state
	s.mu.Unlock()

	significant := SignificantChange(prev, state)
	if significant {
		s.logger.Info("Boss state changed significantly",
			"hp", state.CurrentHP,
			"phase", state.Phase,
			"enraged", state.IsEnraged)
	}

	if s.cb.OnBossUpdate != nil {
		s.cb.OnBossUpdate(state, significant)
	}
	return nil
}

func (s *Syncer) pollCommunity(ctx context.Context) error {
	stats, err := s.client.CommunityStats(ctx)
	if err != nil {
		return err
	}

	if s.cb.OnCommunityUpdate != nil {
		s.cb.OnCommunityUpdate(stats)
	}
	return nil
}

func (s *Syncer) pollPlayer(ctx context.Context) error {
	snapshot, err := s.client.PlayerSnapshot(ctx)
	if err != nil {
		return err
	}

	if s.cb.OnPlayerUpdate != nil {
		s.cb.OnPlayerUpdate(snapshot)
	}
	return nil
}

// SignificantChange 判定两次Boss观测之间是否发生显著变化：
// 阶段切换、狂暴翻转、或HP变动超过总量的5%。
// 显著与否只影响日志与回调的详细程度，不改变轮询节奏。
func SignificantChange(prev, next *model.BossState) bool {
	if prev == nil || next == nil {
		return false
	}
	if prev.Phase != next.Phase {
		return true
	}
	if prev.IsEnraged != next.IsEnraged {
		return true
	}
	if next.MaxHP > 0 {
		delta := math.Abs(float64(prev.CurrentHP-next.CurrentHP)) / float64(next.MaxHP)
		if delta > 0.05 {
			return true
		}
	}
	return false
}

// backoffDelay 连续失败 n 次后的轮询间隔：base×2^n，封顶 max
func backoffDelay(base time.Duration, failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
