package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsdir/internal/cli/output"
	"github.com/yndnr/tlsdir/internal/server/config"
)

// ConfigCommand creates the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the configuration after defaults, file, environment and flags",
				Flags:  append(serveFlags(), outputFlag(string(output.FormatYAML))),
				Action: configShowAction,
			},
			{
				Name:   "check",
				Usage:  "Validate the configuration and exit",
				Flags:  serveFlags(),
				Action: configCheckAction,
			},
		},
	}
}

func configShowAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cfg, err := readConfig(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}

	return output.NewFormatter(format).Format(c.App.Writer, cfg)
}

func configCheckAction(c *cli.Context) error {
	cfg, err := readConfig(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "configuration OK (listen %s, root %s)\n", cfg.ListenAddr(), cfg.Static.Root)
	return nil
}
