package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/qrdrop/models"
	"github.com/cppla/qrdrop/utils"
)

// FileController exposes the upload ledger.
type FileController struct {
	db *gorm.DB
}

// NewFileController creates a new FileController instance.
func NewFileController(db *gorm.DB) *FileController {
	return &FileController{db: db}
}

// FilePage is one page of the ledger, newest first.
type FilePage struct {
	Items    []models.UploadedFile `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// List returns recorded uploads, optionally filtered by ?kind=file|qrcode.
func (f *FileController) List(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := f.db.WithContext(ctx.Request.Context()).Model(&models.UploadedFile{})
	switch kind := ctx.Query("kind"); kind {
	case "":
	case models.KindFile, models.KindQRCode:
		query = query.Where("kind = ?", kind)
	default:
		utils.Error(ctx, http.StatusBadRequest, "unknown kind")
		return
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Sugar.Errorf("count uploads failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to list files")
		return
	}

	items := []models.UploadedFile{}
	if err := query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		utils.Sugar.Errorf("list uploads failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to list files")
		return
	}

	utils.Success(ctx, FilePage{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
