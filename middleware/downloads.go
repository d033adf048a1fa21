package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/qrdrop/models"
	"github.com/cppla/qrdrop/utils"
)

// DownloadRecorder counts successful GETs below prefix per day and path.
func DownloadRecorder(db *gorm.DB, prefix string) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return func(c *gin.Context) {
		c.Next()

		if db == nil || c.Request.Method != "GET" {
			return
		}
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, prefix) || len(path) > 255 {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}

		// Use local midnight to align with DATE column
		now := time.Now().In(time.Local)
		localMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		// Atomic upsert to avoid duplicate key errors under concurrency
		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"hits": gorm.Expr("hits + 1"), "updated_at": now}),
		}).Create(&models.DownloadCount{Date: localMidnight, Path: path, Hits: 1}).Error
		if err != nil {
			utils.Sugar.Warnw("record download failed", "path", path, "err", err)
		}
	}
}
