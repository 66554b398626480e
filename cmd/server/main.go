package main

import (
	"log"

	"github.com/thereayou/rylac/internal/config"
	"github.com/thereayou/rylac/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sugar, err := logger.New(!cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer sugar.Sync()

	srv, err := NewServer(cfg, sugar)
	if err != nil {
		sugar.Fatalw("server init failed", "error", err)
	}

	if err := srv.Run(); err != nil {
		sugar.Fatalw("server stopped with error", "error", err)
	}
}
