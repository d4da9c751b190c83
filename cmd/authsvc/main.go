// Package main is the entrypoint for the Decode auth service: login,
// registration, device trust, sessions, two-factor, and SSO handoff.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/decode-platform/auth-service/internal/config"
	"github.com/decode-platform/auth-service/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "authsvc",
		PortFromConfig: func(cfg *config.Config) int { return cfg.Auth.HTTPPort },
		Setup:          setup,
	}, nil)
}
