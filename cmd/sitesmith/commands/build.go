package commands

import (
	"context"
	"fmt"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output      string `short:"o" help:"Override dir.output"`
	Strict      bool   `help:"Stop at the first failed file"`
	Clean       bool   `help:"Remove the output directory before building"`
	CheckLinks  bool   `name:"check-links" help:"Report broken internal links after the build"`
	MetricsFile string `name:"metrics-file" help:"Write build metrics in Prometheus text format to this file"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := b.apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, err = RunBuild(ctx, g, cfg, b.MetricsFile)
	return err
}

// apply layers command-line flags over the loaded configuration.
func (b *BuildCmd) apply(cfg *config.Config) error {
	if b.Output != "" {
		cfg.Dir.Output = b.Output
	}
	if b.Strict {
		cfg.Build.Strict = true
	}
	if b.Clean {
		cfg.Output.Clean = true
	}
	if b.CheckLinks {
		cfg.Build.CheckLinks = true
	}
	return config.Validate(cfg)
}

// RunBuild runs one build and prints its summary. A build in which any
// file failed returns a build error so the process exits non-zero.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config, metricsFile string) (*build.Report, error) {
	stopTracing, err := startTracing(ctx, g, cfg)
	if err != nil {
		return nil, err
	}
	defer stopTracing()

	svc := build.NewService(cfg).WithLogger(g.Logger)
	var reg *prom.Registry
	if cfg.Metrics.Enabled || metricsFile != "" {
		reg = prom.NewRegistry()
		svc = svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
	}

	report, err := svc.Run(ctx)
	if metricsFile != "" {
		if werr := prom.WriteToTextfile(metricsFile, reg); werr != nil {
			g.Logger.Warn("Failed to write metrics file", logfields.Path(metricsFile), logfields.Error(werr))
		}
	}
	if err != nil {
		return report, err
	}

	_, _ = fmt.Fprintf(g.Stdout, "Built %s: %s\n", cfg.Dir.Output, report.Summary())
	for _, bl := range report.BrokenLinks {
		_, _ = fmt.Fprintf(g.Stdout, "  broken link in %s: %s (%s)\n", bl.Page, bl.URL, bl.Reason)
	}

	if n := report.Failed(); n > 0 {
		paths := make([]string, 0, n)
		for _, f := range report.Failures {
			paths = append(paths, f.Path)
		}
		return report, errors.BuildError(fmt.Sprintf("%d file(s) failed to build: %s", n, strings.Join(paths, ", "))).
			WithContext("build_id", report.BuildID).Build()
	}
	return report, nil
}
