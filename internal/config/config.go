package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Env       string
	AppSecret string
	Port      string
	JWTExpiry time.Duration

	// TMDB
	TMDBToken          string
	TMDBAPIKey         string
	TMDBBaseURL        string
	TMDBImageBaseURL   string
	TMDBLanguage       string
	TMDBTimeout        time.Duration
	OriginalsNetworkID int
	RegionalLanguage   string

	// 首页推荐轮播
	FeaturedInterval time.Duration
	FeaturedWindow   int

	// 缓存
	DetailCacheSize  int
	SearchCacheSize  int
	SearchCacheTTL   time.Duration
	SessionCacheSize int

	// 持久化
	StorageDriver string
	DataDir       string
	DatabaseURL   string
	RedisURL      string

	// 日志
	LogFile      string
	LogMaxSizeMB int
}

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "flixdeck")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", "your-secret-key-change-in-production")

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		AppSecret: appSecret,
		Port:      getEnv("PORT", "5005"),
		JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 72)) * time.Hour,

		TMDBToken:          getEnv("TMDB_TOKEN", ""),
		TMDBAPIKey:         getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:        getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL:   getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
		TMDBLanguage:       getEnv("TMDB_LANGUAGE", ""),
		TMDBTimeout:        time.Duration(getEnvInt("TMDB_TIMEOUT_SECONDS", 10)) * time.Second,
		OriginalsNetworkID: getEnvInt("ORIGINALS_NETWORK_ID", 213),
		RegionalLanguage:   getEnv("REGIONAL_LANGUAGE", "te"),

		FeaturedInterval: time.Duration(getEnvInt("FEATURED_INTERVAL_SECONDS", 8)) * time.Second,
		FeaturedWindow:   getEnvInt("FEATURED_WINDOW", 5),

		DetailCacheSize:  getEnvInt("DETAIL_CACHE_SIZE", 0),
		SearchCacheSize:  getEnvInt("SEARCH_CACHE_SIZE", 100),
		SearchCacheTTL:   time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 10)) * time.Minute,
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 1000),

		StorageDriver: getEnv("STORAGE_DRIVER", "file"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		DatabaseURL:   dbURL,
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),

		LogFile:      getEnv("LOG_FILE", ""),
		LogMaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
