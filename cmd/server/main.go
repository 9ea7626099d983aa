package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raid-day/internal/config"
	"raid-day/internal/handler"
	"raid-day/internal/repository"
	"raid-day/internal/service"
	"raid-day/pkg/database"
	"raid-day/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库连接
	mysqlDB, err := database.NewMySQLConnection(cfg.MySQLDSN, cfg.MySQLMaxConns, cfg.MySQLIdleConns)
	if err != nil {
		log.Fatal("Failed to connect to MySQL:", err)
	}
	defer mysqlDB.Close()

	redisClient, err := database.NewRedisConnection(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// 初始化存储
	redisRepo := repository.NewRedisRepository(redisClient)
	mysqlRepo := repository.NewMySQLRepository(mysqlDB)

	// 初始化服务
	gameService := service.NewGameService(redisRepo, mysqlRepo, cfg)

	// 启动时从MySQL重建排行榜（确保数据一致性）
	if cfg.RebuildOnStart {
		if err := gameService.RebuildLeaderboards(context.Background()); err != nil {
			logger.NewLogger("main").Error("Failed to rebuild leaderboards", "error", err)
		}
	}

	// 后台任务统一挂在一个可取消的 ctx 上，停机时一并拆除
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go gameService.StartRotationLoop(bgCtx)

	// 初始化处理器
	httpHandler := handler.NewHTTPHandler(gameService)

	// 设置 Gin
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())

	// API 路由
	api := router.Group("/game/raid/:instanceId")
	{
		api.POST("/attack", httpHandler.Attack)
		api.POST("/special", httpHandler.Special)
		api.GET("/boss", httpHandler.BossStatus)
		api.GET("/community", httpHandler.CommunityStats)
		api.GET("/player", httpHandler.PlayerSync)
		api.GET("/leaderboard/:n", httpHandler.Leaderboard)
		api.POST("/refresh-session", httpHandler.RefreshSession)
		api.POST("/rotate", httpHandler.RotateBoss)
	}
	router.GET("/game/raid/health", httpHandler.HealthCheck)
	router.GET("/game/raid/cache_stats", httpHandler.GetCacheStats)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 指标服务单独端口暴露
	if cfg.MetricsEnabled {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics server starting on :%s", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, metricsMux); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Printf("Environment: %s", cfg.Environment)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 先停后台任务，再给服务器 5 秒时间完成当前请求
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
