package cmd

import (
	"log/slog"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/providers/devlog"
)

// NewProvider creates the action provider the worker dispatches effectful
// steps to. Platform-backed providers register here; devlog only logs.
func NewProvider(kind string, logger *slog.Logger) engine.ActionProvider {
	switch kind {
	case "devlog":
		return devlog.NewProvider(logger)
	default:
		panic("unsupported action provider: " + kind)
	}
}
