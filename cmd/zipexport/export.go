package main

import (
	"context"
	"fmt"

	"github.com/infracollect/zipexport/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "Archive exports/<export-id>/ into a zip, purge the sources, upload the zip and notify the callback",
	Flags: jobFlags(),
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		job, err := loadValidJob(command)
		if err != nil {
			return err
		}

		r, err := runner.New(ctx, logger.Named("runner"), job, runner.WithUserAgent(userAgent()))
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		result, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run export: %w", err)
		}

		logger.Info("export process completed successfully",
			zap.String("run_id", result.RunID),
			zap.String("zip_path", result.Destination),
		)
		return nil
	},
}
