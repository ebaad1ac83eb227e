package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/api"
	"github.com/jengzang/watchdog-backend-go/internal/config"
	"github.com/jengzang/watchdog-backend-go/internal/database"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Log)
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化路由
	watchdogService := api.NewWatchdogService(database.GetDB(), cfg)
	router := api.SetupRouter(cfg, watchdogService, ctx.Done())

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}

	// 启动服务器
	go func() {
		logging.Info().Str("addr", cfg.Port).Str("project", cfg.ProjectName).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
