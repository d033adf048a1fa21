package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/qrdrop/config"
	"github.com/cppla/qrdrop/controllers"
	"github.com/cppla/qrdrop/converter"
	"github.com/cppla/qrdrop/middleware"
	"github.com/cppla/qrdrop/storage"
	"github.com/cppla/qrdrop/utils"
)

// SetupRouter wires routes, middlewares, and controllers. db and rdb may be
// nil: uploads keep working, the ledger endpoints are not registered and the
// stats cache is skipped.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, rdb *redis.Client, store *storage.Store) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; fall back to the application logger
	gl := utils.Logger
	if cfg.GinPath != "" {
		l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.Sugar.Warnf("gin access log %s unavailable: %v", cfg.GinPath, err)
		} else {
			gl = l
		}
	}
	r.Use(middleware.RequestID())
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, true))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(middleware.DownloadRecorder(db, storage.URLPrefix))

	r.StaticFS(storage.URLPrefix, store.PublicFS())

	cache := utils.NewCache(rdb, time.Duration(cfg.StatsCacheSeconds)*time.Second)
	retention := time.Duration(cfg.UploadRetentionMinutes) * time.Minute

	uploadController := controllers.NewUploadController(db, store, converter.New(converter.OptionsFromConfig(cfg)), cache, retention)
	healthController := controllers.NewHealthController(db, cache)
	configController := controllers.NewConfigController(cfg)

	r.GET("/health", healthController.Health)
	r.GET("/api/config", configController.GetConfig)

	uploads := r.Group("")
	uploads.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	uploads.POST("/upload", uploadController.Upload)
	uploads.POST("/upload-qrcode", uploadController.UploadQRCode)

	if db != nil {
		fileController := controllers.NewFileController(db)
		statsController := controllers.NewStatsController(db, cache)

		api := r.Group("/api")
		api.GET("/files", fileController.List)
		api.GET("/stats", statsController.GetStats)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "not found")
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
