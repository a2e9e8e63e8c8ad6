package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/deck-digest/internal/capture"
	"github.com/dtnitsch/deck-digest/internal/ingest"
	"github.com/dtnitsch/deck-digest/internal/status"
)

func main() {
	app := &cli.App{
		Name:  "deck-digest",
		Usage: "capture a multi-column timeline page and mail periodic digests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress non-error log output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "capture",
				Usage:  "snapshot the source once and write a batch file",
				Action: capture.CaptureAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "override the configured capture source (URL or HTML file)",
					},
					&cli.StringFlag{
						Name:  "selectors",
						Usage: "comma-separated CSS selectors overriding the configured set",
					},
					&cli.StringFlag{
						Name:  "output-mode",
						Usage: "auto, structured, or text",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "run periodic captures until interrupted",
				Action: capture.WatchAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "override the configured capture source (URL or HTML file)",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "summarize fresh batches, send the digest, and archive them",
				Action: ingest.IngestAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the digest to stdout instead of sending email",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "show pipeline state",
				Action: status.StatusAction,
			},
			{
				Name:   "test-email",
				Usage:  "send a test message through the configured notifier",
				Action: ingest.TestEmailAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the test message to stdout instead of sending email",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
