package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/qrdrop/config"
	"github.com/cppla/qrdrop/storage"
	"github.com/cppla/qrdrop/utils"
)

// ConfigController serves the client-facing subset of the upload configuration.
type ConfigController struct {
	cfg config.AppConfig
}

func NewConfigController(cfg config.AppConfig) *ConfigController {
	return &ConfigController{cfg: cfg}
}

// PublicConfig tells clients how uploads will be named, sized and kept.
type PublicConfig struct {
	URLPrefix          string `json:"url_prefix"`
	QRCodePrefix       string `json:"qrcode_prefix"`
	NamingScheme       string `json:"naming_scheme"`
	QRMinSize          int    `json:"qr_min_size"`
	QRMaxSize          int    `json:"qr_max_size"`
	RetentionMinutes   int    `json:"retention_minutes"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
}

// GetConfig returns the public upload settings. Paths and credentials are never exposed.
func (c *ConfigController) GetConfig(ctx *gin.Context) {
	utils.Success(ctx, PublicConfig{
		URLPrefix:          storage.URLPrefix,
		QRCodePrefix:       storage.URLPrefix + "/" + c.cfg.QRCodeSubdir,
		NamingScheme:       c.cfg.NamingScheme,
		QRMinSize:          c.cfg.QRMinSize,
		QRMaxSize:          c.cfg.QRMaxSize,
		RetentionMinutes:   c.cfg.UploadRetentionMinutes,
		RateLimitPerMinute: c.cfg.RateLimitPerMinute,
	})
}
