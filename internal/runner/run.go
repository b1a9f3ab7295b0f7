package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/infracollect/zipexport/apis/v1"
	"github.com/infracollect/zipexport/internal/engine"
	"github.com/infracollect/zipexport/internal/engine/archivers"
	"github.com/infracollect/zipexport/internal/engine/notifiers"
	"github.com/infracollect/zipexport/internal/engine/scratch"
	"github.com/infracollect/zipexport/internal/engine/stores"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Runner struct {
	logger    *zap.Logger
	job       v1.ExportJob
	store     engine.ObjectStore
	notifier  engine.Notifier
	fs        afero.Fs
	runID     string
	userAgent string
}

type Option func(*Runner)

// WithStore replaces the S3 store built from the job.
func WithStore(store engine.ObjectStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithNotifier replaces the HTTP notifier built from the job.
func WithNotifier(notifier engine.Notifier) Option {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithFs sets the filesystem the scratch workspace lives on (default: OS).
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

func WithRunID(runID string) Option {
	return func(r *Runner) {
		r.runID = runID
	}
}

func WithUserAgent(userAgent string) Option {
	return func(r *Runner) {
		r.userAgent = userAgent
	}
}

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseExportJob parses a YAML or JSON job file. The result is not validated:
// flags may still fill in missing fields, call ValidateExportJob afterwards.
func ParseExportJob(data []byte) (v1.ExportJob, error) {
	var job v1.ExportJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.ExportJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	return job, nil
}

func ValidateExportJob(job v1.ExportJob) error {
	if err := defaultValidator.Struct(job); err != nil {
		return fmt.Errorf("failed to validate job: %w", err)
	}
	return nil
}

// BuildVariables returns the variables available to ${VAR} references in a
// job file: the built-in date variables and every allowed environment variable.
func BuildVariables(allowedEnv []string) (map[string]string, error) {
	date := time.Now().UTC()
	variables := map[string]string{
		"JOB_DATE_ISO8601": date.Format(engine.ISO8601Basic),
		"JOB_DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}

// EngineJob maps the job description onto the engine's job.
func EngineJob(job v1.ExportJob) engine.Job {
	return engine.Job{
		ExportID:   job.ExportID,
		UploadName: job.UploadName,
	}
}

func New(ctx context.Context, logger *zap.Logger, job v1.ExportJob, opts ...Option) (*Runner, error) {
	if err := ValidateExportJob(job); err != nil {
		return nil, err
	}
	if err := EngineJob(job).Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate job: %w", err)
	}

	r := &Runner{
		logger: logger,
		job:    job,
		fs:     afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(r)
	}

	logger.Info("creating runner", zap.String("export_id", job.ExportID), zap.String("bucket", job.Storage.Bucket))

	if r.store == nil {
		store, err := buildStore(ctx, job.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to build store: %w", err)
		}
		r.store = store
	}

	if r.notifier == nil {
		notifier, err := buildNotifier(job.Callback, r.userAgent)
		if err != nil {
			return nil, fmt.Errorf("failed to build notifier: %w", err)
		}
		r.notifier = notifier
	}

	return r, nil
}

func buildStore(ctx context.Context, spec v1.StorageSpec) (engine.ObjectStore, error) {
	store, err := stores.NewS3Store(ctx, stores.S3Config{
		Bucket:          spec.Bucket,
		Region:          spec.Region,
		Endpoint:        spec.Endpoint,
		AccessKeyID:     spec.AccessKeyID,
		SecretAccessKey: spec.SecretAccessKey,
		ForcePathStyle:  spec.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func buildNotifier(spec v1.CallbackSpec, userAgent string) (engine.Notifier, error) {
	cfg := notifiers.HTTPConfig{
		URL:      spec.URL,
		Headers:  map[string]string{},
		Insecure: spec.Insecure,
	}

	if userAgent != "" {
		cfg.Headers["User-Agent"] = userAgent
	}
	for k, v := range spec.Headers {
		cfg.Headers[http.CanonicalHeaderKey(k)] = v
	}

	if spec.Timeout != nil {
		cfg.Timeout = time.Duration(*spec.Timeout) * time.Second
	}

	notifier, err := notifiers.NewHTTPNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return notifier, nil
}

// Run performs the export in a fresh scratch workspace, removed afterwards
// whatever the outcome.
func (r *Runner) Run(ctx context.Context) (engine.Result, error) {
	workspace, err := scratch.New(r.fs, r.job.ScratchDir)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	defer func() {
		if cleanupErr := workspace.Cleanup(); cleanupErr != nil {
			r.logger.Warn("failed to clean up scratch workspace", zap.String("path", workspace.Root()), zap.Error(cleanupErr))
		}
	}()

	exporter, err := engine.NewExporter(r.logger.Named("exporter"), engine.ExporterConfig{
		Job:         EngineJob(r.job),
		Store:       r.store,
		Notifier:    r.notifier,
		Workspace:   workspace,
		NewArchiver: archivers.NewZipArchiver,
		RunID:       r.runID,
	})
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to create exporter: %w", err)
	}

	return exporter.Run(ctx)
}
