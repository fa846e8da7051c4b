// Package main provides the CLI entrypoint for blueprint-migrator.
//
// blueprint-migrator upgrades legacy CRM modules in scenario blueprints:
//   - migrate rewrites blueprint files and writes <name>_migrated.json
//   - check lists HTTP modules still calling v1 API endpoints
//   - serve starts the upload/download front-end
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}

			os.Exit(exitErr.Code)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
