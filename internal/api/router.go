package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/watchdog-backend-go/internal/config"
	"github.com/jengzang/watchdog-backend-go/internal/handler"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
	"github.com/jengzang/watchdog-backend-go/internal/middleware"
	"github.com/jengzang/watchdog-backend-go/internal/repository"
	"github.com/jengzang/watchdog-backend-go/internal/service"
)

// NewWatchdogService wires repositories over db into the watchdog service
func NewWatchdogService(db *sql.DB, cfg *config.Config) *service.WatchdogService {
	return service.NewWatchdogService(
		repository.NewSightingRepository(db),
		repository.NewKnownTowerRepository(db),
		repository.NewRecomputeRunRepository(db),
		cfg.Detection,
	)
}

// SetupRouter 设置路由. stop ends background middleware goroutines.
func SetupRouter(cfg *config.Config, watchdogService *service.WatchdogService, stop <-chan struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": cfg.ProjectName + " is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	enodebHandler := handler.NewEnodebHandler(watchdogService)
	sightingHandler := handler.NewSightingHandler(watchdogService)
	knownTowerHandler := handler.NewKnownTowerHandler(watchdogService)
	recomputeHandler := handler.NewRecomputeHandler(watchdogService)

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, stop))
	{
		enodebs := api.Group("/enodebs")
		{
			enodebs.GET("", enodebHandler.ListEnodebs)
			enodebs.GET("/:key", enodebHandler.GetEnodeb)
		}

		api.GET("/sightings/:id", sightingHandler.GetSighting)
		api.GET("/map", enodebHandler.GetMap)
		api.GET("/known-towers", knownTowerHandler.ListKnownTowers)
	}

	// 管理接口
	if !cfg.AdminEnabled() {
		logging.Warn().Msg("jwt_secret is not set; admin API disabled")
	}
	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.POST("/sightings", sightingHandler.IngestSighting)
		admin.POST("/known-towers", knownTowerHandler.AddKnownTower)
		admin.POST("/recompute", recomputeHandler.TriggerRecompute)
		admin.GET("/recompute/:id", recomputeHandler.GetRecomputeRun)
	}

	return r
}
