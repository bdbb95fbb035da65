package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pxbuild/cmd/pxbuild/commands"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("pxbuild"),
		kong.Description("Bundle a TypeScript entry point into a single ES module."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal()
	if err := ctx.Run(global, &cli); err != nil {
		pxerrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
