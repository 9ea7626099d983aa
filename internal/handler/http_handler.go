package handler

import (
	"net/http"
	"strconv"
	"time"

	"raid-day/internal/model"
	"raid-day/internal/service"
	"raid-day/pkg/logger"
	"raid-day/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义指标
var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	attacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_attacks_total",
		Help: "Total number of accepted attacks",
	}, []string{"class", "critical"})

	attackRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_attack_rejections_total",
		Help: "Total number of rejected attacks by reason",
	}, []string{"reason"})

	bossDefeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raid_boss_defeats_total",
		Help: "Total number of boss defeats",
	})
)

type HTTPHandler struct {
	gameService *service.GameService
	logger      *logger.Logger
}

func NewHTTPHandler(gameService *service.GameService) *HTTPHandler {
	return &HTTPHandler{
		gameService: gameService,
		logger:      logger.NewLogger("http_handler"),
	}
}

// identity 从请求中提取玩家与实例标识，任何变更前先校验
func (h *HTTPHandler) identity(c *gin.Context) (instanceID, userID string, ok bool) {
	instanceID = c.Param("instanceId")
	userID = c.GetHeader("X-User-ID")

	if !utils.ValidateInstanceID(instanceID) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instance",
			Message: "Instance ID is missing or malformed",
		})
		return "", "", false
	}
	if !utils.ValidateUserID(userID) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_identity",
			Message: "X-User-ID header is required",
		})
		return "", "", false
	}
	return instanceID, userID, true
}

// Attack 处理普通攻击
func (h *HTTPHandler) Attack(c *gin.Context) {
	start := time.Now()

	instanceID, userID, ok := h.identity(c)
	if !ok {
		h.recordMetrics("POST", "/attack", "400", start)
		return
	}

	var req model.AttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", "/attack", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.gameService.Attack(c.Request.Context(), instanceID, userID, &req)
	if err != nil {
		h.rejectAttack(c, "POST", "/attack", err, start)
		return
	}

	critLabel := "false"
	if req.IsCritical {
		critLabel = "true"
	}
	attacksTotal.WithLabelValues(string(req.Class), critLabel).Inc()
	if result.BossDefeated {
		bossDefeats.Inc()
	}

	h.recordMetrics("POST", "/attack", "200", start)
	c.JSON(http.StatusOK, result)
}

// Special 处理特殊技能
func (h *HTTPHandler) Special(c *gin.Context) {
	start := time.Now()

	instanceID, userID, ok := h.identity(c)
	if !ok {
		h.recordMetrics("POST", "/special", "400", start)
		return
	}

	var req model.SpecialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordMetrics("POST", "/special", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.gameService.Special(c.Request.Context(), instanceID, userID, &req)
	if err != nil {
		h.rejectAttack(c, "POST", "/special", err, start)
		return
	}

	h.recordMetrics("POST", "/special", "200", start)
	c.JSON(http.StatusOK, result)
}

// BossStatus 获取Boss状态（客户端10秒轮询）
func (h *HTTPHandler) BossStatus(c *gin.Context) {
	start := time.Now()

	instanceID := c.Param("instanceId")
	if !utils.ValidateInstanceID(instanceID) {
		h.recordMetrics("GET", "/boss", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instance",
			Message: "Instance ID is missing or malformed",
		})
		return
	}

	state, err := h.gameService.BossStatus(c.Request.Context(), instanceID)
	if err != nil {
		h.recordMetrics("GET", "/boss", "500", start)
		h.logger.Error("Failed to get boss status", "instanceID", instanceID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "boss_status_failed",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/boss", "200", start)
	c.JSON(http.StatusOK, state)
}

// CommunityStats 获取社区统计（客户端5秒轮询）
func (h *HTTPHandler) CommunityStats(c *gin.Context) {
	start := time.Now()

	instanceID := c.Param("instanceId")
	if !utils.ValidateInstanceID(instanceID) {
		h.recordMetrics("GET", "/community", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instance",
			Message: "Instance ID is missing or malformed",
		})
		return
	}

	stats, err := h.gameService.CommunityStats(c.Request.Context(), instanceID)
	if err != nil {
		h.recordMetrics("GET", "/community", "500", start)
		h.logger.Error("Failed to get community stats", "instanceID", instanceID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "community_stats_failed",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/community", "200", start)
	c.JSON(http.StatusOK, stats)
}

// PlayerSync 获取玩家快照（客户端15秒轮询）
func (h *HTTPHandler) PlayerSync(c *gin.Context) {
	start := time.Now()

	instanceID, userID, ok := h.identity(c)
	if !ok {
		h.recordMetrics("GET", "/player", "400", start)
		return
	}

	snapshot, err := h.gameService.PlayerSnapshot(c.Request.Context(), instanceID, userID)
	if err != nil {
		if err == service.ErrPlayerNotFound {
			h.recordMetrics("GET", "/player", "404", start)
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "player_not_found",
				Message: "The player has not joined this raid yet",
			})
			return
		}

		h.recordMetrics("GET", "/player", "500", start)
		h.logger.Error("Failed to get player snapshot",
			"instanceID", instanceID,
			"userID", userID,
			"error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "player_sync_failed",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/player", "200", start)
	c.JSON(http.StatusOK, snapshot)
}

// Leaderboard 获取排行榜前N名
func (h *HTTPHandler) Leaderboard(c *gin.Context) {
	start := time.Now()

	instanceID := c.Param("instanceId")
	if !utils.ValidateInstanceID(instanceID) {
		h.recordMetrics("GET", "/leaderboard/:n", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instance",
			Message: "Instance ID is missing or malformed",
		})
		return
	}

	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n <= 0 {
		h.recordMetrics("GET", "/leaderboard/:n", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_n",
			Message: "N must be a positive integer",
		})
		return
	}

	by := c.DefaultQuery("by", "session")

	entries, err := h.gameService.Leaderboard(c.Request.Context(), instanceID, by, n)
	if err != nil {
		if err == service.ErrInvalidBoard {
			h.recordMetrics("GET", "/leaderboard/:n", "400", start)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_board",
				Message: "by must be 'session' or 'total'",
			})
			return
		}

		h.recordMetrics("GET", "/leaderboard/:n", "500", start)
		h.logger.Error("Failed to get leaderboard", "instanceID", instanceID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "leaderboard_failed",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("GET", "/leaderboard/:n", "200", start)
	c.JSON(http.StatusOK, LeaderboardResponse{
		By:      by,
		Count:   len(entries),
		Entries: entries,
	})
}

// RefreshSession 显式会话刷新
func (h *HTTPHandler) RefreshSession(c *gin.Context) {
	start := time.Now()

	instanceID, userID, ok := h.identity(c)
	if !ok {
		h.recordMetrics("POST", "/refresh-session", "400", start)
		return
	}

	snapshot, err := h.gameService.RefreshSession(c.Request.Context(), instanceID, userID)
	if err != nil {
		switch err {
		case service.ErrPlayerNotFound:
			h.recordMetrics("POST", "/refresh-session", "404", start)
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "player_not_found",
				Message: "The player has not joined this raid yet",
			})
		case service.ErrSessionNotExpired:
			h.recordMetrics("POST", "/refresh-session", "409", start)
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "session_not_expired",
				Message: "Session refresh is only available after the 2-hour window",
			})
		default:
			h.recordMetrics("POST", "/refresh-session", "500", start)
			h.logger.Error("Failed to refresh session",
				"instanceID", instanceID,
				"userID", userID,
				"error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "refresh_failed",
				Message: err.Error(),
			})
		}
		return
	}

	h.recordMetrics("POST", "/refresh-session", "200", start)
	c.JSON(http.StatusOK, snapshot)
}

// RotateBoss 管理端点：强制轮换当日Boss
func (h *HTTPHandler) RotateBoss(c *gin.Context) {
	start := time.Now()

	instanceID := c.Param("instanceId")
	if !utils.ValidateInstanceID(instanceID) {
		h.recordMetrics("POST", "/rotate", "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_instance",
			Message: "Instance ID is missing or malformed",
		})
		return
	}

	state, err := h.gameService.RotateBoss(c.Request.Context(), instanceID)
	if err != nil {
		h.recordMetrics("POST", "/rotate", "500", start)
		h.logger.Error("Failed to rotate boss", "instanceID", instanceID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "rotate_failed",
			Message: err.Error(),
		})
		return
	}

	h.recordMetrics("POST", "/rotate", "200", start)
	c.JSON(http.StatusOK, state)
}

// HealthCheck 健康检查
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	start := time.Now()

	ctx := c.Request.Context()
	redisHealthy := h.gameService.CheckRedisHealth(ctx)
	mysqlHealthy := h.gameService.CheckMySQLHealth(ctx)

	status := "healthy"
	if !redisHealthy || !mysqlHealthy {
		status = "degraded"
	}

	h.recordMetrics("GET", "/health", "200", start)
	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services: map[string]string{
			"redis": map[bool]string{true: "healthy", false: "unhealthy"}[redisHealthy],
			"mysql": map[bool]string{true: "healthy", false: "unhealthy"}[mysqlHealthy],
		},
	})
}

// GetCacheStats 获取缓存统计
func (h *HTTPHandler) GetCacheStats(c *gin.Context) {
	start := time.Now()

	stats := h.gameService.GetCacheStats()

	h.recordMetrics("GET", "/cache/stats", "200", start)
	c.JSON(http.StatusOK, CacheStatsResponse{
		Stats: stats,
	})
}

// rejectAttack 把服务层错误映射为具体的HTTP状态与原因码。
// 资源耗尽类拒绝（没能量、技能已用、Boss已倒）都是非致命状态，
// 客户端据此做"稍后再试"提示而不是报错。
func (h *HTTPHandler) rejectAttack(c *gin.Context, method, endpoint string, err error, start time.Time) {
	switch err {
	case service.ErrNoEnergy:
		attackRejections.WithLabelValues("no_energy").Inc()
		h.recordMetrics(method, endpoint, "409", start)
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "no_energy",
			Message: "No energy charges available",
		})
	case service.ErrAbilityUsed:
		attackRejections.WithLabelValues("ability_used").Inc()
		h.recordMetrics(method, endpoint, "409", start)
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "ability_used",
			Message: "Special ability already used this session",
		})
	case service.ErrBossDefeated:
		attackRejections.WithLabelValues("boss_defeated").Inc()
		h.recordMetrics(method, endpoint, "409", start)
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "boss_defeated",
			Message: "The boss is already defeated, come back tomorrow",
		})
	case service.ErrInvalidClass, service.ErrInvalidDamage:
		attackRejections.WithLabelValues("invalid_input").Inc()
		h.recordMetrics(method, endpoint, "400", start)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: err.Error(),
		})
	default:
		h.recordMetrics(method, endpoint, "500", start)
		h.logger.Error("Attack request failed", "endpoint", endpoint, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

// 记录指标
func (h *HTTPHandler) recordMetrics(method, endpoint, status string, start time.Time) {
	duration := time.Since(start).Seconds()

	requestCounter.WithLabelValues(method, endpoint, status).Inc()
	requestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// 响应结构体
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

type LeaderboardResponse struct {
	By      string                    `json:"by"`
	Count   int                       `json:"count"`
	Entries []*model.LeaderboardEntry `json:"entries"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type CacheStatsResponse struct {
	Stats map[string]interface{} `json:"stats"`
}
