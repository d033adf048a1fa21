package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/qrdrop/models"
	"github.com/cppla/qrdrop/utils"
)

const statsCacheKey = "stats:uploads"

// StatsController provides upload statistics from the ledger.
type StatsController struct {
	db    *gorm.DB
	cache *utils.Cache
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, cache *utils.Cache) *StatsController {
	return &StatsController{db: db, cache: cache}
}

// KindStats aggregates one upload kind.
type KindStats struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats is the /api/stats payload.
type Stats struct {
	FileCount   int64       `json:"file_count"`
	QRCodeCount int64       `json:"qrcode_count"`
	TotalBytes  int64       `json:"total_bytes"`
	Downloads   int64       `json:"downloads"`
	ByKind      []KindStats `json:"by_kind"`
}

// GetStats returns aggregate counts per upload kind and the total download
// count, cached in Redis when available.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var stats Stats
	if s.cache.GetJSON(ctx.Request.Context(), statsCacheKey, &stats) {
		utils.Success(ctx, stats)
		return
	}

	rows := []KindStats{}
	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.UploadedFile{}).
		Select("kind, COUNT(*) AS count, COALESCE(SUM(size), 0) AS bytes").
		Group("kind").Order("kind").
		Scan(&rows).Error; err != nil {
		utils.Sugar.Errorf("aggregate uploads failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to load stats")
		return
	}

	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.DownloadCount{}).
		Select("COALESCE(SUM(hits), 0)").
		Scan(&stats.Downloads).Error; err != nil {
		utils.Sugar.Errorf("aggregate downloads failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to load stats")
		return
	}

	stats.ByKind = rows
	for _, r := range rows {
		switch r.Kind {
		case models.KindFile:
			stats.FileCount = r.Count
		case models.KindQRCode:
			stats.QRCodeCount = r.Count
		}
		stats.TotalBytes += r.Bytes
	}
	s.cache.SetJSON(ctx.Request.Context(), statsCacheKey, stats)
	utils.Success(ctx, stats)
}
