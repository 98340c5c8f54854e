// Package cmd provides CLI commands for the rtkrelay binary.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rtkrelay/lode"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// ArchiveReadFlags locate a session archive for the read-only commands.
func ArchiveReadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "dataset", Usage: "Archive dataset ID", Value: lode.DefaultDataset},
		&cli.StringFlag{Name: "archive-backend", Usage: "Archive backend: fs or s3", Value: "fs"},
		&cli.StringFlag{Name: "archive-path", Usage: "Archive location (fs: directory, s3: bucket/prefix)", Required: true},
		&cli.StringFlag{Name: "archive-region", Usage: "AWS region for the s3 backend"},
		&cli.StringFlag{Name: "archive-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
	}
}

// openReadArchive opens the archive named by ArchiveReadFlags for reading.
func openReadArchive(ctx context.Context, c *cli.Context) (*lode.Archive, error) {
	dataset := c.String("dataset")
	path := c.String("archive-path")
	switch backend := c.String("archive-backend"); backend {
	case "fs":
		return lode.NewArchiveFS(dataset, path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(path)
		return lode.NewArchiveS3(ctx, dataset, lode.S3Config{
			Bucket:   bucket,
			Prefix:   prefix,
			Region:   c.String("archive-region"),
			Endpoint: c.String("archive-endpoint"),
		})
	default:
		return nil, fmt.Errorf("unsupported archive-backend: %s (must be fs or s3)", backend)
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
