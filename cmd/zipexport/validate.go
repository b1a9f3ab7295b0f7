package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	v1 "github.com/infracollect/zipexport/apis/v1"
	"github.com/infracollect/zipexport/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate the export configuration and print the resolved paths",
	Flags: jobFlags(),
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		job, err := loadValidJob(command)
		if err != nil {
			return err
		}

		logger.Debug("export configuration is valid", zap.String("export_id", job.ExportID))

		engineJob := runner.EngineJob(job)
		fmt.Printf("✓ Export configuration is valid\n")
		fmt.Printf("  bucket:      %s\n", job.Storage.Bucket)
		fmt.Printf("  prefix:      %s\n", engineJob.ListPrefix())
		fmt.Printf("  destination: %s\n", engineJob.Destination())
		return nil
	},
}

// loadValidJob resolves the job and validates it, printing every validation
// failure.
func loadValidJob(command *cli.Command) (v1.ExportJob, error) {
	job, err := resolveJob(command)
	if err != nil {
		return v1.ExportJob{}, err
	}

	if err := runner.ValidateExportJob(job); err != nil {
		fmt.Println(formatValidationError(err))
		return v1.ExportJob{}, fmt.Errorf("export configuration is invalid")
	}

	if err := runner.EngineJob(job).Validate(); err != nil {
		return v1.ExportJob{}, fmt.Errorf("export configuration is invalid: %w", err)
	}

	return job, nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("export configuration has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
