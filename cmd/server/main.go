package main

import (
	"context"
	"encoding/gob"
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

	"github.com/user/miroku/internal/config"
	"github.com/user/miroku/internal/handler"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/middleware"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/repository"
	"github.com/user/miroku/internal/router"
	"github.com/user/miroku/internal/service"
	"github.com/user/miroku/internal/utils"
)

func main() {
	// 注册 Session 模型
	gob.Register(model.SessionUser{})

	// 加载环境变量
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if envErr != nil {
		logging.Info().Msg("未找到 .env 文件，使用系统环境变量")
	}

	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("数据库连接失败")
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	repos := repository.NewRepositories(db)
	utils.InitCache()

	if cfg.TMDBToken == "" {
		logging.Warn().Msg("[TMDB] 未设置 TMDB_TOKEN，外部目录请求将失败")
	}
	catalog := service.NewTMDBService(cfg)

	if err := handler.RegisterValidators(); err != nil {
		logging.Fatal().Err(err).Msg("注册校验规则失败")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTExpiry.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("miroku_session", store))

	h := handler.NewHandler(repos, cfg, catalog)
	router.RegisterRoutes(r, h)

	// 批量刷新会按固定间隔逐部请求外部目录，写超时需要放宽
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msgf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Fatal().Err(err).Msg("服务器强制关闭")
	}
	logging.Info().Msg("服务器已退出")
}
