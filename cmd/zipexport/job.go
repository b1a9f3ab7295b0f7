package main

import (
	"fmt"
	"os"

	v1 "github.com/infracollect/zipexport/apis/v1"
	"github.com/infracollect/zipexport/internal/runner"
	"github.com/urfave/cli/v3"
)

// jobFlags returns the flags describing an export. Every flag can also be set
// from the environment; flags that are set override values from --job.
func jobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "job",
			Usage: "YAML job file describing the export",
		},
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the job file (can be repeated)",
		},
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "S3 bucket holding the export",
			Sources: cli.EnvVars("BUCKET_NAME"),
		},
		&cli.StringFlag{
			Name:    "export-id",
			Usage:   "Export identifier; objects under exports/<export-id>/ are archived",
			Sources: cli.EnvVars("EXPORT_ID"),
		},
		&cli.StringFlag{
			Name:    "upload-name",
			Usage:   "Archive name without extension (default: the export id)",
			Sources: cli.EnvVars("UPLOAD_NAME"),
		},
		&cli.StringFlag{
			Name:    "callback-url",
			Usage:   "URL notified with a PUT once the archive is uploaded",
			Sources: cli.EnvVars("CALLBACK_URL"),
		},
		&cli.IntFlag{
			Name:    "callback-timeout",
			Usage:   "Callback timeout in seconds",
			Sources: cli.EnvVars("CALLBACK_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region of the bucket",
			Sources: cli.EnvVars("AWS_REGION"),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Custom S3 endpoint for S3-compatible services",
			Sources: cli.EnvVars("S3_ENDPOINT"),
		},
		&cli.BoolFlag{
			Name:    "force-path-style",
			Usage:   "Use path-style S3 addressing",
			Sources: cli.EnvVars("S3_FORCE_PATH_STYLE"),
		},
		&cli.StringFlag{
			Name:    "access-key-id",
			Usage:   "Static AWS access key id (default: AWS credential chain)",
			Sources: cli.EnvVars("AWS_ACCESS_KEY_ID"),
		},
		&cli.StringFlag{
			Name:    "secret-access-key",
			Usage:   "Static AWS secret access key",
			Sources: cli.EnvVars("AWS_SECRET_ACCESS_KEY"),
		},
		&cli.StringFlag{
			Name:    "scratch-dir",
			Usage:   "Directory for temporary files (default: OS temp dir)",
			Sources: cli.EnvVars("SCRATCH_DIR"),
		},
	}
}

// resolveJob builds the export job from --job, then applies flags and
// environment variables on top. The result is not validated.
func resolveJob(command *cli.Command) (v1.ExportJob, error) {
	var job v1.ExportJob

	if filename := command.String("job"); filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return v1.ExportJob{}, fmt.Errorf("failed to read job file '%s': %w", filename, err)
		}

		job, err = runner.ParseExportJob(data)
		if err != nil {
			return v1.ExportJob{}, fmt.Errorf("failed to parse job file '%s': %w", filename, err)
		}

		variables, err := runner.BuildVariables(command.StringSlice("allowed-env"))
		if err != nil {
			return v1.ExportJob{}, fmt.Errorf("failed to build variables: %w", err)
		}

		if err := runner.ExpandTemplates(&job, variables); err != nil {
			return v1.ExportJob{}, fmt.Errorf("failed to expand templates: %w", err)
		}
	}

	stringFlags := map[string]*string{
		"bucket":            &job.Storage.Bucket,
		"export-id":         &job.ExportID,
		"upload-name":       &job.UploadName,
		"callback-url":      &job.Callback.URL,
		"region":            &job.Storage.Region,
		"endpoint":          &job.Storage.Endpoint,
		"access-key-id":     &job.Storage.AccessKeyID,
		"secret-access-key": &job.Storage.SecretAccessKey,
		"scratch-dir":       &job.ScratchDir,
	}
	for name, dst := range stringFlags {
		if command.IsSet(name) {
			*dst = command.String(name)
		}
	}

	if command.IsSet("force-path-style") {
		job.Storage.ForcePathStyle = command.Bool("force-path-style")
	}

	if command.IsSet("callback-timeout") {
		timeout := int(command.Int("callback-timeout"))
		job.Callback.Timeout = &timeout
	}

	return job, nil
}
