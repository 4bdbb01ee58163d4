package commands

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
	"git.home.luguber.info/inful/sitesmith/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Host         string `help:"Override server.host"`
	Port         int    `short:"p" help:"Override server.port"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable live reload script injection"`
	Poll         string `help:"Override watch.poll_interval (e.g. 2s)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if err := s.apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	stopTracing, err := startTracing(ctx, g, cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	svc := build.NewService(cfg).WithLogger(g.Logger)
	srv := server.New(cfg, svc).WithLogger(g.Logger)
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
		srv.WithGatherer(reg)
	}
	return srv.Run(ctx)
}

func (s *ServeCmd) apply(cfg *config.Config) error {
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.NoLiveReload {
		cfg.Server.LiveReload = false
	}
	if s.Poll != "" {
		cfg.Watch.PollInterval = s.Poll
	}
	return config.Validate(cfg)
}
