package app

import (
	"io"
	"log/slog"

	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/stencilgo/internal/expr"
	"github.com/vk/stencilgo/internal/provider"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	providers *provider.Registry
	functions map[string]function.Function
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. A nil providers
// registry gets a logging fallback so plain plan-and-apply runs work out
// of the box.
func NewApp(outW io.Writer, appConfig *Config, providers *provider.Registry) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if providers == nil {
		providers = provider.NewRegistry()
		providers.SetFallback(provider.LoggingFallback())
	}

	return &App{
		outW:      outW,
		logger:    logger,
		config:    appConfig,
		providers: providers,
		functions: expr.DefaultFunctions(),
	}
}

// Providers returns the application's provider registry. This is
// primarily for testing.
func (a *App) Providers() *provider.Registry {
	return a.providers
}

// RegisterFunction exposes an additional external function to template
// expressions, e.g. a secret-retrieval capability supplied by a caller.
func (a *App) RegisterFunction(name string, fn function.Function) {
	a.functions[name] = fn
}
