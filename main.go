package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storedesk-admin/config"
	"storedesk-admin/core/appbootstrap"
	"storedesk-admin/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)

	rt, err := appbootstrap.InitRuntime(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Errorf("close runtime: %v", err)
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	rt.StartBackground(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (env=%s)", cfg.ListenAddr, cfg.AppEnv)
		errCh <- rt.Server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			logger.Errorf("server: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Server.Stop(ctx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
	if err := rt.StopBackground(ctx); err != nil {
		logger.Errorf("stop background: %v", err)
	}
}
