package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

// ActiveDownload is the handle for one in-flight download: its record,
// negotiated plan, and staging-file guard. One instance per request; no
// state is shared between concurrent downloads.
type ActiveDownload struct {
	Download *domain.Download
	Plan     *domain.FormatPlan
	Staging  *infrastructure.StagingFile

	started bool
}

// DownloadManager coordinates negotiation, orchestration, and history
// persistence for download requests.
type DownloadManager struct {
	repo         domain.DownloadRepository
	negotiator   *infrastructure.FormatNegotiator
	orchestrator *infrastructure.Orchestrator
	claimWindow  time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	active map[string]*ActiveDownload
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	repo domain.DownloadRepository,
	negotiator *infrastructure.FormatNegotiator,
	orchestrator *infrastructure.Orchestrator,
	claimWindow time.Duration,
	logger *zap.Logger,
) *DownloadManager {
	return &DownloadManager{
		repo:         repo,
		negotiator:   negotiator,
		orchestrator: orchestrator,
		claimWindow:  claimWindow,
		logger:       logger,
		active:       make(map[string]*ActiveDownload),
	}
}

// Create validates the request, negotiates the format plan, allocates
// the staging file, and persists the new download record. Malformed
// input is the only error rejected synchronously; everything past this
// point surfaces as lifecycle events.
func (dm *DownloadManager) Create(ctx context.Context, url, formatID string, combinedHint bool, useCredentials *bool) (*ActiveDownload, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if formatID == "" {
		return nil, fmt.Errorf("format id is required")
	}

	dl := domain.NewDownload(url, formatID)
	plan, usedCreds := dm.negotiator.Inspect(ctx, domain.MediaTarget{URL: url}, formatID, combinedHint)
	if useCredentials != nil {
		// The metadata endpoint already decided the authentication
		// state for this resource; honor it so the download sees the
		// same formats the caller was shown.
		usedCreds = *useCredentials
	}
	dl.ApplyPlan(plan)
	dl.UsedCredentials = usedCreds

	staging, err := dm.orchestrator.PrepareStaging(plan)
	if err != nil {
		return nil, err
	}

	if err := dm.repo.Create(dl); err != nil {
		return nil, fmt.Errorf("failed to persist download: %w", err)
	}

	entry := &ActiveDownload{Download: dl, Plan: plan, Staging: staging}
	dm.mu.Lock()
	dm.active[dl.ID] = entry
	dm.mu.Unlock()

	dm.logger.Info("Download created",
		zap.String("id", dl.ID),
		zap.String("url", url),
		zap.String("format", plan.FormatExpression),
		zap.String("plan_source", string(plan.Source)),
		zap.Bool("used_credentials", usedCreds))

	return entry, nil
}

// Run drives the orchestrator for a created download, persisting status
// transitions as lifecycle events pass through to sink. It blocks until
// the download reaches a terminal state or ctx is cancelled.
func (dm *DownloadManager) Run(ctx context.Context, id string, sink domain.EventSink) error {
	dm.mu.Lock()
	entry, ok := dm.active[id]
	if ok && entry.started {
		dm.mu.Unlock()
		return fmt.Errorf("download %s already started", id)
	}
	if ok {
		entry.started = true
	}
	dm.mu.Unlock()

	if !ok {
		return fmt.Errorf("download %s not found or already finished", id)
	}

	dl := entry.Download
	recording := domain.EventSinkFunc(func(event domain.Event) {
		switch event.Name {
		case domain.EventProgress:
			dl.Progress = event.Progress
		case domain.EventMerging:
			if dl.Status != domain.StatusMerging {
				dl.MarkMerging()
				dm.persist(dl)
			}
		case domain.EventComplete:
			dl.MarkCompleted(event.FilePath, event.Filename)
			dm.persist(dl)
		case domain.EventError:
			dl.MarkFailed(event.Message)
			dm.persist(dl)
		}
		sink.Emit(event)
	})

	dm.orchestrator.Start(ctx, dl, entry.Plan, dl.UsedCredentials, entry.Staging, recording)

	if !dl.IsTerminal() {
		// The orchestrator returned without a terminal event: the
		// client went away. The subprocess is dead and the staging
		// file released; record the cancellation.
		dl.MarkCancelled()
	}
	dm.persist(dl)

	// Completed downloads stay registered until the artifact is
	// served; everything else is done with its staging file. A client
	// that never fetches must not pin the entry and artifact forever,
	// so the claim window bounds how long delivery stays available.
	if dl.Status != domain.StatusCompleted {
		dm.drop(id)
	} else if dm.claimWindow > 0 {
		time.AfterFunc(dm.claimWindow, func() { dm.expireArtifact(id) })
	}
	return nil
}

// expireArtifact releases an artifact that was completed but never
// claimed within the window. A no-op when delivery already happened.
func (dm *DownloadManager) expireArtifact(id string) {
	dm.mu.RLock()
	_, ok := dm.active[id]
	dm.mu.RUnlock()
	if !ok {
		return
	}
	dm.logger.Info("Artifact never claimed within window, releasing",
		zap.String("id", id), zap.Duration("claim_window", dm.claimWindow))
	dm.ReleaseArtifact(id, "expired")
}

// Stream negotiates the format and pipes the subprocess output straight
// to w. Only plans with no post-processing can stream this way.
func (dm *DownloadManager) Stream(ctx context.Context, url, formatID string, combinedHint bool, w io.Writer) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if formatID == "" {
		return fmt.Errorf("format id is required")
	}

	plan, usedCreds := dm.negotiator.Inspect(ctx, domain.MediaTarget{URL: url}, formatID, combinedHint)
	if plan.NeedsPostProcess {
		return fmt.Errorf("format %s needs post-processing and cannot be streamed directly", formatID)
	}
	return dm.orchestrator.StreamDirect(ctx, url, plan, usedCreds, w)
}

// Artifact returns the staging guard and record for a completed
// download awaiting delivery.
func (dm *DownloadManager) Artifact(id string) (*ActiveDownload, error) {
	dm.mu.RLock()
	entry, ok := dm.active[id]
	dm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no artifact for download %s", id)
	}
	if entry.Download.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("download %s has no completed artifact", id)
	}
	return entry, nil
}

// ReleaseArtifact fires the staging guard for a download and drops its
// registration. Safe to call from any number of termination triggers.
func (dm *DownloadManager) ReleaseArtifact(id, reason string) {
	dm.mu.RLock()
	entry, ok := dm.active[id]
	dm.mu.RUnlock()
	if !ok {
		return
	}
	entry.Staging.Release(reason)
	dm.drop(id)
}

// Get returns a download record by ID
func (dm *DownloadManager) Get(id string) (*domain.Download, error) {
	return dm.repo.FindByID(id)
}

// List returns download records matching the filters
func (dm *DownloadManager) List(filters map[string]interface{}) ([]*domain.Download, error) {
	return dm.repo.FindAll(filters)
}

// Stats summarizes the download history
func (dm *DownloadManager) Stats() (*domain.DownloadStats, error) {
	return dm.repo.GetStats()
}

func (dm *DownloadManager) persist(dl *domain.Download) {
	if err := dm.repo.Update(dl); err != nil {
		dm.logger.Error("Failed to update download record",
			zap.String("id", dl.ID), zap.Error(err))
	}
}

func (dm *DownloadManager) drop(id string) {
	dm.mu.Lock()
	delete(dm.active, id)
	dm.mu.Unlock()
}
