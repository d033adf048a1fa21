package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/qrdrop/utils"
)

// HealthController reports liveness plus the state of the ledger and cache.
type HealthController struct {
	db    *gorm.DB
	cache *utils.Cache
}

func NewHealthController(db *gorm.DB, cache *utils.Cache) *HealthController {
	return &HealthController{db: db, cache: cache}
}

// Health always answers 200; degraded dependencies are reported, not fatal.
func (h *HealthController) Health(ctx *gin.Context) {
	c, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	utils.Success(ctx, gin.H{
		"status": "ok",
		"db":     h.dbStatus(c),
		"redis":  h.redisStatus(c),
	})
}

func (h *HealthController) dbStatus(ctx context.Context) string {
	if h.db == nil {
		return "disabled"
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "down"
	}
	return "up"
}

func (h *HealthController) redisStatus(ctx context.Context) string {
	if !h.cache.Enabled() {
		return "disabled"
	}
	if err := h.cache.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
