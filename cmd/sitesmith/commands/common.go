// Package commands implements the sitesmith subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/tracing"
)

// Global carries state shared by subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// CLI is the root command.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitesmith.yaml"`
	Verbose bool   `short:"v" help:"Enable debug logging and detailed errors"`

	Build   BuildCmd   `cmd:"" help:"Build the site into the output directory"`
	Serve   ServeCmd   `cmd:"" help:"Build, serve and rebuild on changes with live reload"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Formats FormatsCmd `cmd:"" help:"List registered formats and passthrough patterns"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply installs a default logger before the config is read. Commands
// that load the config replace it according to log.level and log.format.
// nolint:unparam // kong hook signature.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if g.Stdout == nil {
		g.Stdout = os.Stdout
	}
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig reads the configuration and reconfigures logging from it.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = newLogger(os.Stderr, cfg.Log, root.Verbose)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(lc.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startTracing installs the OTLP exporter when configured. The returned
// function flushes pending spans.
func startTracing(ctx context.Context, g *Global, cfg *config.Config) (func(), error) {
	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			g.Logger.Warn("Failed to flush traces", logfields.Error(err))
		}
	}, nil
}
