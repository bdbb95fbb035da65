package commands

import (
	"path/filepath"

	"git.home.luguber.info/inful/pxbuild/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	// If the user specified an output directory, place the config there as "pxbuild.yaml".
	if i.Output != "" {
		return RunInit(g, filepath.Join(i.Output, config.DefaultPath), i.Force)
	}
	return RunInit(g, root.Config, i.Force)
}

func RunInit(g *Global, configPath string, force bool) error {
	info(g.Out, "Writing configuration to %s", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	success(g.Out, "Initialized %s", configPath)
	return nil
}
