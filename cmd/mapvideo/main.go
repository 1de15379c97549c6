package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/ivlev/mapvideo/internal/config"
	"github.com/ivlev/mapvideo/internal/datasource"
	"github.com/ivlev/mapvideo/internal/engine"
	"github.com/ivlev/mapvideo/internal/regions"
	"github.com/ivlev/mapvideo/internal/render"
	"github.com/ivlev/mapvideo/internal/server"
	"github.com/ivlev/mapvideo/internal/system"
	"github.com/ivlev/mapvideo/internal/video"
)

func main() {
	configPath := flag.String("config", "mapvideo.yaml", "path to the YAML config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// .env is optional; the environment still wins over the file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	system.InitResourceLimits(log)
	cfg.Workers = system.RenderWorkers(cfg.Workers, cfg.FrameWidth, cfg.FrameHeight)
	log.Info("render pool sized", "workers", cfg.Workers)

	for _, dir := range []string{cfg.DataDir, cfg.VideoDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("could not create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	provider := datasource.NewClient(cfg.UpstreamURL)
	renderer := render.NewRaster(cfg.FrameWidth, cfg.FrameHeight, cfg.DocsURL)
	encoder := &video.FFmpegEncoder{}
	eng := engine.New(cfg, provider, renderer, encoder, log)

	// Warm the frame cache shortly after the upstream publishes its
	// daily dataset, so the first video request only has to encode.
	c := cron.New()
	_, err = c.AddFunc("30 4 * * *", func() {
		for _, region := range regions.All() {
			if err := eng.WarmCache(context.Background(), region); err != nil {
				log.Error("cache warm-up failed", "region", region, "error", err)
			}
		}
	})
	if err != nil {
		log.Error("cron setup failed", "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(eng, cfg.DocsURL, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
