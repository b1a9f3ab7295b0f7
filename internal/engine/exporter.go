package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/infracollect/zipexport/internal/engine/scratch"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// partialArchiveName holds the archive while it is being written. It is
	// renamed to archiveBaseName plus the archiver's extension once closed.
	partialArchiveName = "export.partial"
	archiveBaseName    = "export"
)

// ExporterConfig wires the components of an export run.
type ExporterConfig struct {
	Job         Job
	Store       ObjectStore
	Notifier    Notifier
	Workspace   *scratch.Workspace
	NewArchiver ArchiverFactory
	// RunID identifies the run in logs and notifications. Generated when empty.
	RunID string
}

// Exporter runs the list, archive, purge, publish and notify sequence for one job.
type Exporter struct {
	logger      *zap.Logger
	job         Job
	store       ObjectStore
	notifier    Notifier
	workspace   *scratch.Workspace
	newArchiver ArchiverFactory
	runID       string
}

func NewExporter(logger *zap.Logger, cfg ExporterConfig) (*Exporter, error) {
	if err := cfg.Job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.NewArchiver == nil {
		return nil, fmt.Errorf("archiver factory is required")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &Exporter{
		logger:      logger.With(zap.String("run_id", runID), zap.String("export_id", cfg.Job.ExportID)),
		job:         cfg.Job,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		workspace:   cfg.Workspace,
		newArchiver: cfg.NewArchiver,
		runID:       runID,
	}, nil
}

func (e *Exporter) RunID() string {
	return e.runID
}

// Run executes the export. Any failure stops the run at the stage it occurred
// in; nothing is retried. The returned Result is populated up to that point.
//
// The purge re-lists the prefix after the archive is closed. Only keys that
// made it into the archive are deleted; keys that appeared in between are left
// in place and reported in Result.Skipped.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	result := Result{
		RunID:       e.runID,
		Destination: e.job.Destination(),
	}

	e.logger.Info("starting export",
		zap.String("prefix", e.job.Prefix()),
		zap.String("destination", result.Destination),
		zap.String("store", e.store.Name()),
	)

	result.Stage = StageListing
	keys, err := e.list(ctx)
	if err != nil {
		return e.fail(result, err)
	}

	result.Stage = StageFetching
	archived, archiveName, err := e.archive(ctx, keys, &result)
	if err != nil {
		return e.fail(result, err)
	}

	result.Stage = StagePurging
	if err := e.purge(ctx, archived, &result); err != nil {
		return e.fail(result, err)
	}

	result.Stage = StagePublishing
	if err := e.publish(ctx, archiveName, &result); err != nil {
		return e.fail(result, err)
	}

	result.Stage = StageNotifying
	if err := e.notify(ctx, result.Destination); err != nil {
		result.State = StateNotifyFailed
		e.logger.Error("archive published but notification failed",
			zap.String("stage", string(StageNotifying)),
			zap.String("destination", result.Destination),
			zap.String("notifier", e.notifier.Name()),
			zap.Error(err),
		)
		return result, &StageError{Stage: StageNotifying, Err: fmt.Errorf("%w: %w", ErrNotifyFailed, err)}
	}

	result.State = StateDone
	result.Stage = ""
	e.logger.Info("export completed",
		zap.String("destination", result.Destination),
		zap.Int("entries", result.Entries),
		zap.Int("purged", result.Purged),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int64("archive_size", result.ArchiveSize),
	)
	return result, nil
}

func (e *Exporter) fail(result Result, err error) (Result, error) {
	result.State = StateFailed

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = &StageError{Stage: result.Stage, Err: err}
	}
	result.Stage = stageErr.Stage

	e.logger.Error("export failed",
		zap.String("stage", string(stageErr.Stage)),
		zap.String("key", stageErr.Key),
		zap.Error(stageErr.Err),
	)
	return result, stageErr
}

func (e *Exporter) list(ctx context.Context) ([]string, error) {
	prefix := e.job.ListPrefix()
	e.logger.Info("listing objects", zap.String("prefix", prefix))

	keys, err := e.store.List(ctx, prefix)
	if err != nil {
		return nil, &StageError{Stage: StageListing, Err: err}
	}

	e.logger.Info("found objects to process", zap.Int("count", len(keys)))
	return keys, nil
}

// archive fetches every key into the workspace and appends it to a fresh
// archive. It returns the set of keys handled and the workspace name of the
// finished archive. On error the partial archive stays in the workspace and is
// never published.
func (e *Exporter) archive(ctx context.Context, keys []string, result *Result) (map[string]struct{}, string, error) {
	f, err := e.workspace.CreateArchive(partialArchiveName)
	if err != nil {
		return nil, "", &StageError{Stage: StageArchiving, Err: err}
	}

	archived, ext, err := e.writeArchive(ctx, f, keys, result)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = &StageError{Stage: StageArchiving, Err: fmt.Errorf("failed to close archive file: %w", closeErr)}
	}
	if err != nil {
		return nil, "", err
	}

	name := archiveBaseName + ext
	if err := e.workspace.RenameArchive(partialArchiveName, name); err != nil {
		return nil, "", &StageError{Stage: StageArchiving, Err: err}
	}
	return archived, name, nil
}

func (e *Exporter) writeArchive(ctx context.Context, w io.Writer, keys []string, result *Result) (map[string]struct{}, string, error) {
	archiver, err := e.newArchiver(w)
	if err != nil {
		return nil, "", &StageError{Stage: StageArchiving, Err: fmt.Errorf("failed to create archiver: %w", err)}
	}

	ext := archiver.Extension()
	if want := path.Ext(result.Destination); ext != want {
		return nil, "", &StageError{Stage: StageArchiving, Err: fmt.Errorf("archiver writes %s archives but destination %s expects %s", ext, result.Destination, want)}
	}

	archived := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		rel, ok := e.job.RelativePath(key)
		if !ok {
			return nil, "", &StageError{Stage: StageFetching, Key: key, Err: fmt.Errorf("key is outside prefix %s", e.job.ListPrefix())}
		}

		switch {
		case rel == "":
			// The prefix's own directory marker has no entry of its own.
			e.logger.Debug("skipping prefix marker", zap.String("key", key))
		case !IsLocalEntry(rel):
			return nil, "", &StageError{Stage: StageFetching, Key: key, Err: fmt.Errorf("path %q is not a clean local path", rel)}
		case strings.HasSuffix(rel, "/"):
			if err := archiver.AddFile(ctx, rel, strings.NewReader("")); err != nil {
				return nil, "", &StageError{Stage: StageArchiving, Key: key, Err: err}
			}
			result.Entries++
		default:
			if err := e.fetch(ctx, key, rel); err != nil {
				return nil, "", err
			}
			if err := e.appendFile(ctx, archiver, key, rel); err != nil {
				return nil, "", err
			}
			result.Entries++
			e.logger.Info("added object to archive and cleaned up local file", zap.String("key", key))
		}

		archived[key] = struct{}{}
	}

	if err := archiver.Close(); err != nil {
		return nil, "", &StageError{Stage: StageArchiving, Err: err}
	}

	return archived, ext, nil
}

func (e *Exporter) fetch(ctx context.Context, key, rel string) (err error) {
	e.logger.Debug("downloading object", zap.String("key", key))

	f, err := e.workspace.Create(rel)
	if err != nil {
		return &StageError{Stage: StageFetching, Key: key, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &StageError{Stage: StageFetching, Key: key, Err: fmt.Errorf("failed to close local file: %w", closeErr)}
		}
	}()

	n, err := e.store.Get(ctx, key, f)
	if err != nil {
		return &StageError{Stage: StageFetching, Key: key, Err: err}
	}

	e.logger.Debug("downloaded object", zap.String("key", key), zap.String("path", e.workspace.Path(rel)), zap.Int64("bytes", n))
	return nil
}

func (e *Exporter) appendFile(ctx context.Context, archiver Archiver, key, rel string) error {
	f, err := e.workspace.Open(rel)
	if err != nil {
		return &StageError{Stage: StageArchiving, Key: key, Err: err}
	}

	addErr := archiver.AddFile(ctx, rel, f)
	if err := errors.Join(addErr, f.Close()); err != nil {
		return &StageError{Stage: StageArchiving, Key: key, Err: err}
	}

	if err := e.workspace.Remove(rel); err != nil {
		return &StageError{Stage: StageArchiving, Key: key, Err: err}
	}
	return nil
}

func (e *Exporter) purge(ctx context.Context, archived map[string]struct{}, result *Result) error {
	prefix := e.job.ListPrefix()
	e.logger.Info("cleaning up original objects", zap.String("prefix", prefix))

	keys, err := e.store.List(ctx, prefix)
	if err != nil {
		return &StageError{Stage: StagePurging, Err: err}
	}

	isArchived := func(key string, _ int) bool {
		_, ok := archived[key]
		return ok
	}

	for _, key := range lo.Reject(keys, isArchived) {
		e.logger.Warn("object appeared after archiving, leaving it in place", zap.String("key", key))
		result.Skipped = append(result.Skipped, key)
	}

	for _, key := range lo.Filter(keys, isArchived) {
		if err := e.store.Delete(ctx, key); err != nil {
			return &StageError{Stage: StagePurging, Key: key, Err: err}
		}
		result.Purged++
		e.logger.Info("deleted object", zap.String("key", key))
	}

	return nil
}

func (e *Exporter) publish(ctx context.Context, archiveName string, result *Result) error {
	destination := result.Destination
	e.logger.Info("uploading archive", zap.String("destination", destination))

	f, err := e.workspace.OpenArchive(archiveName)
	if err != nil {
		return &StageError{Stage: StagePublishing, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &StageError{Stage: StagePublishing, Err: fmt.Errorf("failed to stat archive: %w", err)}
	}
	result.ArchiveSize = info.Size()

	if err := e.store.Put(ctx, destination, f); err != nil {
		return &StageError{Stage: StagePublishing, Key: destination, Err: err}
	}

	e.logger.Info("uploaded archive", zap.String("destination", destination), zap.Int64("bytes", result.ArchiveSize))
	return nil
}

func (e *Exporter) notify(ctx context.Context, destination string) error {
	e.logger.Info("sending callback", zap.String("notifier", e.notifier.Name()))

	if err := e.notifier.Notify(ctx, Notification{RunID: e.runID, ZipPath: destination}); err != nil {
		return err
	}

	e.logger.Info("sent callback")
	return nil
}
