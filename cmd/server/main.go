// Package main is the chatbot server entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyellow/tamly-chatbot-go/internal/app"
	"github.com/garyellow/tamly-chatbot-go/internal/config"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		if msg := apperrors.GetUserMessage(err); msg != err.Error() {
			_, _ = fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
