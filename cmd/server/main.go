package main

import (
	"context"
	"encoding/gob"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/user/flixdeck/internal/config"
	"github.com/user/flixdeck/internal/handler"
	"github.com/user/flixdeck/internal/middleware"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/repository"
	"github.com/user/flixdeck/internal/router"
	"github.com/user/flixdeck/internal/service"
)

func main() {
	// 注册 Session 模型
	gob.Register(model.SessionUser{})

	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	// 日志同时写入滚动文件
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		defer rotator.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
		gin.DefaultWriter = io.MultiWriter(os.Stdout, rotator)
	}

	if cfg.TMDBToken == "" && cfg.TMDBAPIKey == "" {
		log.Println("【警告】未配置 TMDB_TOKEN 或 TMDB_API_KEY，元数据请求将失败")
	}

	// 初始化存储
	ctx := context.Background()
	store, err := repository.OpenStore(ctx, repository.StoreOptions{
		Driver:      cfg.StorageDriver,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		log.Fatalf("存储初始化失败 (%s): %v", cfg.StorageDriver, err)
	}
	defer store.Close()
	log.Printf("[Storage] 使用存储驱动: %s", cfg.StorageDriver)

	// 初始化仓库
	repos := repository.NewRepositories(store)

	// 元数据客户端和会话注册表
	client := service.NewTMDBClient(service.TMDBOptions{
		BaseURL:            cfg.TMDBBaseURL,
		Token:              cfg.TMDBToken,
		APIKey:             cfg.TMDBAPIKey,
		Language:           cfg.TMDBLanguage,
		Timeout:            cfg.TMDBTimeout,
		OriginalsNetworkID: cfg.OriginalsNetworkID,
		RegionalLanguage:   cfg.RegionalLanguage,
	})
	registry, err := service.NewSessionRegistry(client, repos.Watchlist, service.RegistryOptions{
		Size:             cfg.SessionCacheSize,
		Categories:       model.AllCategories,
		CategoryTimeout:  cfg.TMDBTimeout,
		DetailTimeout:    cfg.TMDBTimeout,
		DetailCacheSize:  cfg.DetailCacheSize,
		SearchCacheSize:  cfg.SearchCacheSize,
		SearchCacheTTL:   cfg.SearchCacheTTL,
		FeaturedPriority: []model.Category{model.CategoryOriginals, model.CategoryTrending},
		FeaturedWindow:   cfg.FeaturedWindow,
		FeaturedInterval: cfg.FeaturedInterval,
	})
	if err != nil {
		log.Fatalf("会话注册表初始化失败: %v", err)
	}
	defer registry.Close()

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 启用 gzip，SSE 不压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/catalog/events"})))

	// 设置 Session 中间件
	sessionStore := cookie.NewStore([]byte(cfg.AppSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTExpiry.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("flixdeck_session", sessionStore))

	// 中间件
	r.Use(middleware.Logger())

	// 初始化 Handler
	h := handler.NewHandler(repos, cfg, registry)

	// 注册路由
	router.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		// SSE 是长连接，不设置 WriteTimeout
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已退出")
}
