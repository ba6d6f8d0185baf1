package config

import (
	"flag"
	"os"
	"time"

	"github.com/edgemed/edgemed/internal/flagx"
	"github.com/edgemed/edgemed/internal/models"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-m string   operating mode: demo or prod
//	-a string   base URL of the remote sync endpoint
//	-d string   device identifier
//	-b string   queue database path
//	-k string   keyset file path
//	-l string   local API bind address
//	-i int      sync interval in seconds
//	-n int      sync batch size
//	-P          prompt for the keyset passphrase at startup
//
// The function filters os.Args to only the flags it recognizes, using
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-m", "-a", "-d", "-b", "-k", "-l", "-i", "-n", "-P"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	mode := fs.String("m", string(cfg.Mode), "operating mode (demo or prod)")
	fs.StringVar(&cfg.CloudAPIURL, "a", cfg.CloudAPIURL, "remote sync endpoint base URL")
	fs.StringVar(&cfg.DeviceID, "d", cfg.DeviceID, "device identifier")
	fs.StringVar(&cfg.DatabasePath, "b", cfg.DatabasePath, "queue database path")
	fs.StringVar(&cfg.KeysetPath, "k", cfg.KeysetPath, "keyset file path")
	fs.StringVar(&cfg.LocalAPIAddr, "l", cfg.LocalAPIAddr, "local API bind address")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.IntVar(&cfg.SyncBatchSize, "n", cfg.SyncBatchSize, "sync batch size")
	fs.BoolVar(&cfg.PromptPassphrase, "P", cfg.PromptPassphrase, "prompt for keyset passphrase")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Mode = models.Mode(*mode)
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
