package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sitesmith/internal/version"
)

// VersionCmd prints build metadata.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global) error {
	_, err := fmt.Fprintln(g.Stdout, version.String())
	return err
}
