package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

// FormatsCmd lists the formats the configuration registers.
type FormatsCmd struct{}

func (f *FormatsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	p, err := build.NewPipeline(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			g.Logger.Warn("Failed to stop stylesheet compiler", logfields.Error(err))
		}
	}()

	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FORMAT\tOUTPUT\tSTATUS")
	for _, info := range p.Registry.Formats() {
		status := "compiled"
		switch {
		case !info.HasCompiler:
			status = "declared, no compiler"
		case !info.Declared:
			status = "extension only"
		}
		out := info.OutputFileExtension
		if out == "" {
			out = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Token, out, status)
	}
	for _, glob := range p.Registry.Passthrough() {
		_, _ = fmt.Fprintf(tw, "%s\t(copy)\tpassthrough\n", glob)
	}
	return tw.Flush()
}
