package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/edgemed/edgemed/internal/flagx"
	"github.com/edgemed/edgemed/internal/server"
	"github.com/edgemed/edgemed/internal/server/auth"
	"github.com/edgemed/edgemed/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	// -issue prints a bearer token for the named device and exits.
	args := flagx.FilterArgs(os.Args[1:], []string{"-issue"})
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	issue := fs.String("issue", "", "issue a device token and exit")
	_ = fs.Parse(args)

	if *issue != "" {
		token, err := auth.GenerateToken(*issue, []byte(cfg.JWTSecret), cfg.TokenValidityDuration)
		if err != nil {
			log.Fatalf("token generation error: %v", err)
		}
		fmt.Println(token)
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
