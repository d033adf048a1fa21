package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/qrdrop/converter"
	"github.com/cppla/qrdrop/middleware"
	"github.com/cppla/qrdrop/models"
	"github.com/cppla/qrdrop/storage"
	"github.com/cppla/qrdrop/utils"
)

const (
	msgNoFile          = "No file uploaded"
	msgStoreFailed     = "Failed to store file"
	msgNoQRCode        = "No QR code uploaded"
	msgQRConvertFailed = "Failed to convert and store QR code"

	formField = "file"
)

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	FilePath string `json:"filePath"`
}

// UploadController accepts generic and QR-code uploads.
type UploadController struct {
	db        *gorm.DB
	store     *storage.Store
	converter *converter.Converter
	cache     *utils.Cache
	retention time.Duration
}

// NewUploadController wires the upload handlers. db and cache may be nil; the
// ledger and the stats cache are then skipped.
func NewUploadController(db *gorm.DB, store *storage.Store, conv *converter.Converter, cache *utils.Cache, retention time.Duration) *UploadController {
	return &UploadController{db: db, store: store, converter: conv, cache: cache, retention: retention}
}

// Upload stores a single multipart file in the upload directory.
func (u *UploadController) Upload(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile(formField)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	saved, err := u.store.Save(u.store.Root(), storage.Ext(header.Filename), file)
	if err != nil {
		utils.Sugar.Errorw("store upload failed",
			"request_id", middleware.RequestIDFrom(ctx), "filename", header.Filename, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	url, err := u.store.URL(saved)
	if err != nil {
		_ = u.store.Remove(saved.Path)
		utils.Sugar.Errorw("resolve upload url failed", "request_id", middleware.RequestIDFrom(ctx), "err", err)
		utils.Error(ctx, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	u.record(ctx, models.KindFile, header.Filename, saved, url)
	utils.Success(ctx, UploadResponse{FilePath: url})
}

// UploadQRCode stores an uploaded QR-code image, converts it to PNG and keeps
// only the PNG. The uploaded original is removed whether or not conversion succeeds.
func (u *UploadController) UploadQRCode(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile(formField)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, msgNoQRCode)
		return
	}
	defer file.Close()

	rid := middleware.RequestIDFrom(ctx)
	src, err := u.store.Save(u.store.QRDir(), storage.Ext(header.Filename), file)
	if err != nil {
		utils.Sugar.Errorw("store qrcode upload failed", "request_id", rid, "filename", header.Filename, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, msgQRConvertFailed)
		return
	}
	defer func() {
		if err := u.store.Remove(src.Path); err != nil {
			utils.Sugar.Warnw("remove qrcode original failed", "request_id", rid, "path", src.Path, "err", err)
		}
	}()

	out, err := u.convert(ctx.Request.Context(), src)
	if err != nil {
		if errors.Is(err, converter.ErrInvalidSVG) || errors.Is(err, converter.ErrUnsupportedInput) {
			utils.Sugar.Warnw("rejected qrcode input", "request_id", rid, "filename", header.Filename, "err", err)
		} else {
			utils.Sugar.Errorw("Error converting QR code to PNG", "request_id", rid, "filename", header.Filename, "err", err)
		}
		utils.Error(ctx, http.StatusInternalServerError, msgQRConvertFailed)
		return
	}

	url, err := u.store.URL(out)
	if err != nil {
		_ = u.store.Remove(out.Path)
		utils.Sugar.Errorw("resolve qrcode url failed", "request_id", rid, "err", err)
		utils.Error(ctx, http.StatusInternalServerError, msgQRConvertFailed)
		return
	}
	u.record(ctx, models.KindQRCode, header.Filename, out, url)
	utils.Success(ctx, UploadResponse{FilePath: url})
}

func (u *UploadController) convert(ctx context.Context, src storage.Saved) (storage.Saved, error) {
	in, err := os.Open(src.Path)
	if err != nil {
		return storage.Saved{}, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer in.Close()

	return u.store.Publish(u.store.QRDir(), ".png", func(w io.Writer) error {
		return u.converter.ToPNG(ctx, in, w)
	})
}

// record adds the upload to the ledger. It is best-effort: the file is already
// stored and the client gets its path even when the ledger write fails.
func (u *UploadController) record(ctx *gin.Context, kind, originalName string, saved storage.Saved, url string) {
	if u.db == nil {
		return
	}
	row := models.UploadedFile{
		Kind:         kind,
		OriginalName: utils.SanitizeFilename(originalName),
		StoredName:   saved.Name,
		Dir:          u.dirFor(kind),
		URL:          url,
		Size:         saved.Size,
		ContentType:  saved.ContentType,
	}
	if u.retention > 0 {
		exp := time.Now().Add(u.retention)
		row.ExpireAt = &exp
	}
	if err := u.db.WithContext(ctx.Request.Context()).Create(&row).Error; err != nil {
		utils.Sugar.Warnw("record upload failed", "request_id", middleware.RequestIDFrom(ctx), "url", url, "err", err)
		return
	}
	u.cache.InvalidateByPrefix(ctx.Request.Context(), statsCacheKey)
}

func (u *UploadController) dirFor(kind string) string {
	if kind == models.KindQRCode {
		return u.store.QRDir()
	}
	return u.store.Root()
}
