package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/export"
	"github.com/dgallion1/chatmd/internal/platform"
)

// Archive persists finished exports.
type Archive interface {
	Save(ctx context.Context, e archive.Entry) (archive.Entry, error)
	FindByHash(ctx context.Context, hash string) (archive.Entry, error)
}

// Worker processes a single export job.
type Worker struct {
	registry *platform.Registry
	archive  Archive
	stats    *ExportStats
	log      *slog.Logger
	now      func() time.Time
}

func NewWorker(registry *platform.Registry, arch Archive, stats *ExportStats, log *slog.Logger) *Worker {
	return &Worker{
		registry: registry,
		archive:  arch,
		stats:    stats,
		log:      log,
		now:      time.Now,
	}
}

// Process converts the job's page and, when an archive is configured,
// stores the result. Archive failures are recorded but do not fail the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "url", job.PageURL, "source", job.Source)
	start := time.Now()

	job.SetStatus(StatusConverting, "converting")
	res, err := export.Run(bytes.NewReader(job.PageData()), job.PageURL, export.Options{
		Now:      w.now,
		Registry: w.registry,
	})
	if err != nil {
		log.Error("export failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "converting")
		w.stats.RecordFailure(time.Since(start))
		return
	}
	job.releasePageData()
	job.SetCounts(len(res.Document.Messages), res.Skipped)
	log.Info("converted page", "platform", res.Platform, "messages", len(res.Document.Messages), "skipped", res.Skipped)

	out := Output{
		Platform: res.Platform,
		Title:    res.Document.Title,
		Filename: res.Filename,
		Text:     res.Text,
	}

	if w.archive != nil {
		job.SetStatus(StatusArchiving, "archiving")
		out.ArchiveID = w.store(ctx, log, job, res)
	}

	job.SetOutput(out)
	job.SetStatus(StatusCompleted, "done")
	w.stats.Record(time.Since(start))
}

// store archives the export unless identical page bytes were archived
// before, and returns the archive id ("" on failure).
func (w *Worker) store(ctx context.Context, log *slog.Logger, job *Job, res *export.Result) string {
	existing, err := w.archive.FindByHash(ctx, job.ContentHash)
	if err == nil {
		log.Info("duplicate page, reusing archive entry", "archive_id", existing.ID)
		return existing.ID
	}
	if !errors.Is(err, archive.ErrNotFound) {
		log.Warn("dedup check failed, proceeding", "error", err)
	}

	entry, err := w.archive.Save(ctx, archive.Entry{
		URL:         job.PageURL,
		Platform:    res.Platform,
		Title:       res.Document.Title,
		Model:       res.Document.ModelName,
		Topic:       res.Document.TopicTag(),
		Filename:    res.Filename,
		ContentHash: job.ContentHash,
		Markdown:    res.Text,
	})
	if err != nil {
		log.Warn("archive write failed", "error", err)
		job.AddError(fmt.Sprintf("archive: %s", err))
		return ""
	}
	return entry.ID
}
