package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitesmith/cmd/sitesmith/commands"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Bind(global),
		kong.Name("sitesmith"),
		kong.Description("Build static sites from Markdown, HTML templates and Sass."),
		kong.UsageOnError(),
	)

	if err := parser.Run(cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
