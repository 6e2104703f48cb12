// Package app wires the registry, the manifest loader and the CLI actions
// into one runnable application instance.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/quantgridgo/internal/ctxlog"
	"github.com/vk/quantgridgo/internal/quantization"
	"github.com/vk/quantgridgo/internal/registry"
)

// ManifestLoader is the interface for a format-specific pass manifest
// loader.
type ManifestLoader interface {
	Load(ctx context.Context, paths ...string) ([]*registry.RegisteredPass, error)
}

// App is one application instance.
type App struct {
	out    io.Writer
	cfg    *Config
	loader ManifestLoader
}

// NewApp creates an App writing its output to outW.
func NewApp(outW io.Writer, cfg *Config, loader ManifestLoader) *App {
	return &App{out: outW, cfg: cfg, loader: loader}
}

// Run builds the registry and performs the configured action.
func (a *App) Run(ctx context.Context) error {
	logger := ctxlog.New(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	reg := registry.New()
	(&quantization.Module{}).Register(reg)

	if len(a.cfg.ManifestPaths) > 0 {
		passes, err := a.loader.Load(ctx, a.cfg.ManifestPaths...)
		if err != nil {
			return fmt.Errorf("loading pass manifests: %w", err)
		}
		for _, pass := range passes {
			reg.Register(pass)
		}
	}

	if err := reg.Validate(ctx); err != nil {
		return err
	}

	switch a.cfg.Action {
	case ActionList:
		return a.list(reg)
	case ActionDescribe:
		return a.describe(reg)
	case ActionResolve:
		return a.resolvePoint(ctx, reg)
	default:
		return fmt.Errorf("unknown action %q", a.cfg.Action)
	}
}
