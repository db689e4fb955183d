// cmd/backup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/semmidev/stowaway/internal/app"
	"github.com/semmidev/stowaway/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	// A run is not interrupted once started; it ends in Done or Failed.
	return application.Run(context.Background())
}
