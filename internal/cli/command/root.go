package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsdir/internal/infra/buildinfo"
)

// App creates the CLI application.
//
// Without a subcommand it runs the server, so `tlsdir --port 8443` and
// `tlsdir serve --port 8443` are equivalent.
func App() *cli.App {
	app := &cli.App{
		Name:      "tlsdir",
		Usage:     "Serve a directory over HTTPS",
		UsageText: "tlsdir [serve] [--config file] [--bind addr] [--port n] [--cert file] [--key file] [--root dir]",
		Version:   buildinfo.String(),
		Flags:     serveFlags(),
		Action:    serveAction,
		Commands: []*cli.Command{
			ServeCommand(),
			ProbeCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}

	return app
}

// outputFlag returns the --output flag with the given default.
func outputFlag(def string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: table, json, yaml",
		Value:   def,
	}
}
