package main

import (
	"fmt"
	"os"

	blinkchat "github.com/blinkchat/blinkchat-go"
	"github.com/rs/zerolog"
)

// newLogger builds the CLI logger. Debug level with --verbose, warnings only
// otherwise.
func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// resolvedConfig merges the config file with environment overrides.
// BLINKCHAT_TOKEN and BLINKCHAT_BASE_URL win over the file.
func resolvedConfig() (*Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("BLINKCHAT_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("BLINKCHAT_BASE_URL"); v != "" {
		cfg.Default.BaseURL = v
	}
	return cfg, nil
}

// getClient creates a BlinkChat client from config. Exits if no token is set.
func getClient() (*blinkchat.Client, *Config) {
	cfg, err := resolvedConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No session token. Run 'blinkchat init <token>' first.")
		os.Exit(1)
	}

	opts := []blinkchat.ClientOption{blinkchat.WithLogger(newLogger())}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, blinkchat.WithBaseURL(cfg.Default.BaseURL))
	}
	return blinkchat.NewClient(cfg.Auth.Token, opts...), cfg
}

// getEngine wires a client and channel into a reconciliation engine.
func getEngine() (*blinkchat.Engine, *Config) {
	client, cfg := getClient()
	log := newLogger()

	channel := blinkchat.NewChannelClient(client.ChannelURL(cfg.Auth.Token), &blinkchat.ChannelConfig{
		AutoReconnect: true,
		Logger:        log,
	})
	return blinkchat.NewEngine(client, channel, &blinkchat.EngineConfig{
		HistoryLimit: cfg.Default.HistoryLimit,
		Logger:       log,
	}), cfg
}
