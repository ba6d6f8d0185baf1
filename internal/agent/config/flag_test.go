package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgemed/edgemed/internal/models"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-m", "prod", "-a", "https://sync.example.com", "-d", "clinic-7", "-i", "60", "-n", "20"}, expectPanic: false,
			expected: &Config{Mode: models.ModeProd, CloudAPIURL: "https://sync.example.com", DeviceID: "clinic-7", SyncInterval: 60 * time.Second, SyncBatchSize: 20}},
		{name: "Test2 passphrase prompt", args: []string{"cmd", "-P", "-m", "demo"}, expectPanic: false,
			expected: &Config{Mode: models.ModeDemo, PromptPassphrase: true}},
		{name: "Test3 incorrect sync interval", args: []string{"cmd", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
