package main

import (
	"context"
	"log"

	"github.com/edgemed/edgemed/internal/agent"
	"github.com/edgemed/edgemed/internal/agent/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := agent.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
