package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garage-client/internal/auth"
	"garage-client/internal/config"
	"garage-client/internal/logging"
	"garage-client/internal/server"
	"garage-client/internal/store"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadMock()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	st := store.NewWithOptions(store.Options{StateFile: cfg.StateFile, Logger: logger})
	st.SeedDemo(time.Now())

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "garage-mock",
	}

	backend := server.NewBackend(server.Deps{Store: st, TokenConfig: tokenCfg, Logger: logger})
	defer backend.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("listening", "port", cfg.Port, "demo_password", store.DemoPassword)
	if err := server.Run(ctx, cfg, backend.Router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
