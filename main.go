package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "bidout-auction/internal/biddingService"
	"bidout-auction/internal/config"
	model "bidout-auction/internal/models"
	"bidout-auction/internal/repository"
	"bidout-auction/internal/server"
	"bidout-auction/utils"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("failed to set log level", map[string]any{"error": err.Error()})
	}

	repo, closeRepo := openRepository(cfg)
	defer closeRepo()

	biddingSvc := bidding.NewBiddingService(repo)

	if cfg.Seed {
		prepopulateListings(biddingSvc)
	}

	router := server.SetupRouter(biddingSvc)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.Driver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
	utils.Info("auction server stopped", nil)
}

// openRepository builds the configured store and returns its close func
func openRepository(cfg *config.Config) (repository.AuctionDB, func()) {
	if cfg.Driver != config.DriverRedis {
		return repository.NewMemoryRepo(), func() {}
	}

	pool := repository.NewRedisPool(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.MaxIdle, cfg.Redis.MaxActive)
	repo := repository.NewRedisRepo(pool, cfg.Redis.Prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		utils.Fatal("redis unreachable", map[string]any{"addr": cfg.Redis.Addr, "error": err.Error()})
	}

	return repo, func() {
		if err := pool.Close(); err != nil {
			utils.Warn("failed to close redis pool", map[string]any{"error": err.Error()})
		}
	}
}

// prepopulateListings adds sample listings unless they already exist
func prepopulateListings(svc *bidding.BiddingService) {
	ctx := context.Background()
	owner := model.User{UserID: "seed-auctioneer", Username: "auctioneer"}
	closing := time.Now().Add(7 * 24 * time.Hour)

	listings := []bidding.NewListing{
		{Name: "Vintage Camera", Description: "Leica M3 in working order", Price: decimal.RequireFromString("1000.00"), ClosingDate: closing},
		{Name: "Oak Writing Desk", Description: "Solid oak, early 1900s", Price: decimal.RequireFromString("250.00"), ClosingDate: closing},
		{Name: "Signed Vinyl", Description: "First pressing, signed sleeve", Price: decimal.RequireFromString("75.50"), ClosingDate: closing},
	}

	for _, l := range listings {
		if _, err := svc.GetListing(ctx, bidding.Slugify(l.Name)); err == nil {
			continue
		}
		view, err := svc.CreateListing(ctx, owner, l)
		if err != nil {
			utils.Warn("failed to seed listing", map[string]any{"name": l.Name, "error": err.Error()})
			continue
		}
		utils.Debug("seeded listing", map[string]any{"slug": view.Slug})
	}
}
