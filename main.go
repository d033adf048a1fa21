package main

import (
	"context"
	"time"

	"github.com/cppla/qrdrop/config"
	"github.com/cppla/qrdrop/models"
	"github.com/cppla/qrdrop/routes"
	"github.com/cppla/qrdrop/storage"
	"github.com/cppla/qrdrop/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	store := storage.FromConfig(cfg)
	if err := store.Init(); err != nil {
		utils.Sugar.Fatalf("prepare upload directories: %v", err)
	}

	db, err := config.InitDatabase(cfg, &models.UploadedFile{}, &models.DownloadCount{})
	if err != nil {
		utils.Sugar.Fatalf("init database: %v", err)
	}
	rdb := utils.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Background cleanup for expired uploads and conversion leftovers (best-effort)
	utils.StartUploadCleaner(ctx, db, store.QRDir(), time.Duration(cfg.CleanupIntervalMinutes)*time.Minute)

	r := routes.SetupRouter(cfg, db, rdb, store)

	utils.Sugar.Infof("Starting server on port %s (graceful), uploads in %s", cfg.AppPort, store.Root())
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
