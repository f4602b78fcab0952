// Command sfsck checks a sharkfs disk image for structural damage.
//
// It exits 0 when the image is clean, 1 when findings were reported
// and 2 when the image could not be read at all.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/sharkfs/fsck"
)

func main() {
	var verbosity int

	app := &cli.App{
		Name:      "sfsck",
		Usage:     "verify the structure of a sharkfs disk image",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Usage:   "emit the report as JSON",
				Aliases: []string{"j"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "log findings as they are discovered; repeat to log every block",
				Aliases: []string{"v"},
				Count:   &verbosity,
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, verbosity)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sfsck:", err)
		os.Exit(2)
	}
}

func run(c *cli.Context, verbosity int) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: sfsck [-v] [--json] IMAGE", 2)
	}

	var optFns []fsck.Option
	if verbosity > 0 {
		level := slog.LevelInfo
		if verbosity > 1 {
			level = slog.LevelDebug
			optFns = append(optFns, fsck.WithVerbose())
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		optFns = append(optFns, fsck.WithLogger(logger))
	}

	report, err := fsck.Check(c.Args().First(), optFns...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("sfsck: %v", err), 2)
	}

	if c.Bool("json") {
		if err := report.WriteJSON(os.Stdout); err != nil {
			return cli.Exit(fmt.Sprintf("sfsck: %v", err), 2)
		}
	} else if err := report.WriteText(os.Stdout); err != nil {
		return cli.Exit(fmt.Sprintf("sfsck: %v", err), 2)
	}

	if !report.Clean() {
		return cli.Exit("", 1)
	}
	return nil
}
