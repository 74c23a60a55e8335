package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mosaicmedia/catalog/internal/cache"
	"github.com/mosaicmedia/catalog/internal/config"
	"github.com/mosaicmedia/catalog/internal/feed"
	httpserver "github.com/mosaicmedia/catalog/internal/http"
	"github.com/mosaicmedia/catalog/internal/repository"
	"github.com/mosaicmedia/catalog/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[media-api] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	var commentCache *cache.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		client := redis.NewClient(opts)
		commentCache = cache.New(client, time.Duration(cfg.CacheTTLSecs)*time.Second)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := commentCache.Ping(pingCtx); err != nil {
			pingCancel()
			log.Fatalf("connect redis: %v", err)
		}
		pingCancel()
		logger.Println("comment cache enabled")
	} else {
		logger.Println("REDIS_URL not set, comment cache disabled")
	}

	feedClient, err := feed.NewHTTPClient(cfg.FeedURL, cfg.FeedAPIKey, time.Duration(cfg.FeedTimeoutSecs)*time.Second, logger)
	if err != nil {
		log.Fatalf("init feed client: %v", err)
	}

	repo := repository.New(st)
	server := httpserver.New(cfg, st, repo, feedClient, commentCache, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
