package main

import (
	"context"
	"github.com/rs/zerolog"
	"os"

	"fn_invoke/cli"
	"fn_invoke/config"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	// Configure logging
	configureLogging(cfg.LogLevel)

	os.Exit(cli.Run(context.Background(), cli.Options{
		Args:   os.Args[1:],
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: cfg,
	}))
}

// configureLogging sets the global log level. The console writer itself is
// built by cli.Run on standard error, since standard output carries the
// function response.
func configureLogging(level string) {
	zerolog.SetGlobalLevel(cli.ParseLevel(level))
}
