package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsdir/internal/cli/output"
	"github.com/yndnr/tlsdir/internal/infra/buildinfo"
)

// VersionCommand creates the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Flags: []cli.Flag{
			outputFlag("text"),
		},
		Action: func(c *cli.Context) error {
			if c.String("output") == "text" {
				fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, buildinfo.String())
				return nil
			}

			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			return output.NewFormatter(format).Format(c.App.Writer, buildinfo.Get())
		},
	}
}
