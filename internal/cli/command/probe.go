package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsdir/internal/cli/connection"
	"github.com/yndnr/tlsdir/internal/cli/output"
	"github.com/yndnr/tlsdir/internal/infra/tlsroots"
)

// ErrUnexpectedStatus is returned by probe for responses outside 2xx and 3xx.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// ProbeCommand creates the probe command.
func ProbeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Connect to a tlsdir server and report the TLS session and response",
		UsageText: "tlsdir probe --addr localhost:8443 [--ca ca.pem] [--path /index.html]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Server address (host:port or https URL)",
				Value:   "localhost:443",
			},
			&cli.StringSliceFlag{
				Name:  "ca",
				Usage: "Trust certificates from this PEM file or directory (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "Skip certificate verification",
			},
			&cli.StringFlag{
				Name:  "server-name",
				Usage: "Server name sent in SNI and verified against the certificate",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Request path",
				Value: "/",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall timeout",
				Value: connection.DefaultTimeout,
			},
			outputFlag(string(output.FormatTable)),
		},
		Action: probeAction,
	}
}

func probeAction(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	pool, err := caPool(c.StringSlice("ca"))
	if err != nil {
		return err
	}
	tlsCfg := pool.ClientTLSConfig(c.String("server-name"))
	tlsCfg.InsecureSkipVerify = c.Bool("insecure")

	res, err := connection.Probe(c.Context, connection.ProbeConfig{
		Addr:    c.String("addr"),
		Path:    c.String("path"),
		TLS:     tlsCfg,
		Timeout: c.Duration("timeout"),
	})
	if err != nil {
		return err
	}

	if err := output.NewFormatter(format).Format(c.App.Writer, res); err != nil {
		return err
	}

	if !res.OK() {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.Status)
	}
	return nil
}

// caPool builds the trust pool from system roots plus the given files or
// directories.
func caPool(paths []string) (*tlsroots.Pool, error) {
	pool := tlsroots.NewPool()
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("ca: %w", err)
		}
		if !fi.IsDir() {
			if err := pool.AddCertFile(p); err != nil {
				return nil, fmt.Errorf("ca %s: %w", p, err)
			}
			continue
		}
		n, err := pool.AddCertDir(p)
		if err != nil {
			return nil, fmt.Errorf("ca %s: %w", p, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("ca %s: %w", p, tlsroots.ErrNoCertsFound)
		}
	}
	return pool, nil
}
