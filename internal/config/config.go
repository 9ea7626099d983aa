package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"raid-day/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	// 服务器配置
	Environment string `json:"environment"`
	Port        string `json:"port"`
	LogLevel    string `json:"logLevel"`

	// MySQL 配置
	MySQLDSN       string `json:"mysqlDSN"`
	MySQLMaxConns  int    `json:"mysqlMaxConns"`
	MySQLIdleConns int    `json:"mysqlIdleConns"`

	// Redis 配置
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDB"`
	RedisPoolSize int    `json:"redisPoolSize"`

	// 游戏配置
	LeaderboardMaxN       int           `json:"leaderboardMaxN"`
	RecentAttacksKept     int           `json:"recentAttacksKept"`
	RotationCheckInterval time.Duration `json:"rotationCheckInterval"`
	EnableCache           bool          `json:"enableCache"`
	CacheSize             int           `json:"cacheSize"`
	RebuildOnStart        bool          `json:"rebuildOnStart"`

	// 性能配置
	WriteTimeout time.Duration `json:"writeTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout"`

	// 监控配置
	MetricsEnabled bool   `json:"metricsEnabled"`
	MetricsPort    string `json:"metricsPort"`
}

// LoadConfig 从 .env / 环境变量加载配置
func LoadConfig() *Config {
	// .env 不存在时静默忽略，线上环境直接注入环境变量
	_ = godotenv.Load()

	cfg := &Config{
		// 服务器配置
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// MySQL 配置
		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/raidday?parseTime=true"),
		MySQLMaxConns:  getEnvAsInt("MYSQL_MAX_CONNS", 100),
		MySQLIdleConns: getEnvAsInt("MYSQL_IDLE_CONNS", 10),

		// Redis 配置
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),

		// 游戏配置
		LeaderboardMaxN:       getEnvAsInt("LEADERBOARD_MAX_N", 100),
		RecentAttacksKept:     getEnvAsInt("RECENT_ATTACKS_KEPT", 50),
		RotationCheckInterval: getEnvAsDuration("ROTATION_CHECK_INTERVAL", 1*time.Minute),
		EnableCache:           getEnvAsBool("ENABLE_CACHE", true),
		CacheSize:             getEnvAsInt("CACHE_SIZE", 10000),
		RebuildOnStart:        getEnvAsBool("REBUILD_ON_START", false),

		// 性能配置
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 10*time.Second),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 5*time.Second),

		// 监控配置
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		logger.NewLogger("config").Warn("Configuration validation warning", "error", err)
	}

	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.LeaderboardMaxN <= 0 {
		return fmt.Errorf("LEADERBOARD_MAX_N must be positive")
	}

	if c.RecentAttacksKept <= 0 {
		return fmt.Errorf("RECENT_ATTACKS_KEPT must be positive")
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as integer, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as boolean, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as duration, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}
