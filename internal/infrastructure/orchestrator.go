package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

const (
	// artifactPollInterval is how often the expected output file is
	// probed after a clean exit, absorbing filesystem-flush latency.
	artifactPollInterval = 500 * time.Millisecond

	// fragmentConcurrency bounds parallel fragment fetches during merge
	// downloads.
	fragmentConcurrency = "4"

	// processLogTail is how many trailing output lines are kept on the
	// download record.
	processLogTail = 80
)

// Orchestrator spawns the retrieval subprocess for one download, parses
// its textual progress into structured lifecycle events, and guarantees
// a single terminal event per download. All subprocess and parsing
// failures are converted to error events; nothing escapes Start.
type Orchestrator struct {
	config  *domain.DownloadConfig
	cookies *CookieResolver
	logger  *zap.Logger
}

// NewOrchestrator creates a new download orchestrator
func NewOrchestrator(config *domain.DownloadConfig, cookies *CookieResolver, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{config: config, cookies: cookies, logger: logger}
}

// PrepareStaging allocates a uniquely named staging path for the plan's
// output container and returns its cleanup guard. Uniqueness (timestamp
// plus random suffix) is what isolates concurrent downloads from each
// other.
func (o *Orchestrator) PrepareStaging(plan *domain.FormatPlan) (*StagingFile, error) {
	if err := os.MkdirAll(o.config.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	name := fmt.Sprintf("dl_%d_%s.%s",
		time.Now().UnixNano(), uuid.New().String()[:8], plan.Container)
	path := filepath.Join(o.config.StagingDir, name)
	return NewStagingFile(path, o.config.CleanupDelay, o.config.CleanupRetry, o.logger), nil
}

// Start runs the retrieval subprocess to completion, emitting lifecycle
// events to sink. It blocks until a terminal event has been emitted or
// the context is cancelled; on cancellation the subprocess is killed,
// the staging file released, and no terminal event is emitted (there is
// no client left to receive one).
func (o *Orchestrator) Start(ctx context.Context, dl *domain.Download, plan *domain.FormatPlan, useCredentials bool, staging *StagingFile, sink domain.EventSink) {
	emitter := &eventEmitter{sink: sink}

	args := o.buildArgs(plan, staging.Path(), useCredentials, dl.URL)
	o.logger.Info("Starting download",
		zap.String("id", dl.ID),
		zap.String("cmd", ShellEscapeCommand(o.config.YTDLPBinary, args...)))

	cmd := exec.CommandContext(ctx, o.config.YTDLPBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.fail(emitter, staging, fmt.Sprintf("failed to open stdout pipe: %v", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		o.fail(emitter, staging, fmt.Sprintf("failed to open stderr pipe: %v", err))
		return
	}

	if err := cmd.Start(); err != nil {
		o.fail(emitter, staging, fmt.Sprintf("failed to start %s: %v", o.config.YTDLPBinary, err))
		return
	}

	emitter.emit(domain.Event{Name: domain.EventStart, DownloadID: dl.ID})

	// Both streams carry progress lines; funnel them into one channel.
	lines := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(stdout, lines, &wg)
	go scanLines(stderr, lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	state := domain.NewProgressState(plan.NeedsMerge())
	heartbeatStop := make(chan struct{})
	var tail []string

	for line := range lines {
		tail = appendTail(tail, line)

		if domain.IsErrorLine(line) {
			// Fail early rather than leaving the consumer waiting on
			// a process that may hang after reporting the error.
			state.Phase = domain.PhaseFailed
			dl.ProcessLog = strings.Join(tail, "\n")
			emitter.emitTerminal(domain.Event{
				Name:    domain.EventError,
				Message: strings.TrimSpace(line),
			})
			continue
		}

		if domain.IsMergeLine(line) {
			if state.Phase == domain.PhaseDownloading {
				state.Phase = domain.PhaseMerging
				emitter.emit(domain.Event{
					Name:    domain.EventMerging,
					Message: "merging audio and video streams",
				})
				go o.mergeHeartbeat(emitter, heartbeatStop)
			}
			continue
		}

		if update, ok := domain.ParseProgressLine(line); ok {
			if percent, emit := state.Observe(update); emit {
				emitter.emit(domain.Event{
					Name:     domain.EventProgress,
					Progress: percent,
				})
			}
		}
	}

	waitErr := cmd.Wait()
	close(heartbeatStop)
	dl.ProcessLog = strings.Join(tail, "\n")

	if emitter.isTerminal() {
		// An error marker already failed this download; the partial
		// artifact is no longer wanted whatever the exit code says.
		staging.Release("failed")
		return
	}

	if ctx.Err() != nil {
		o.logger.Info("Download cancelled", zap.String("id", dl.ID))
		staging.Release("cancelled")
		return
	}

	if waitErr != nil {
		message := fmt.Sprintf("download failed: %v", waitErr)
		if state.Phase == domain.PhaseMerging {
			message = "failed while merging/processing streams"
		}
		o.fail(emitter, staging, message)
		return
	}

	// Exit 0 does not guarantee the artifact is visible yet.
	if !o.awaitArtifact(ctx, staging.Path()) {
		o.fail(emitter, staging, "download reported success but produced no output file")
		return
	}

	state.Phase = domain.PhaseComplete
	emitter.emitTerminal(domain.Event{
		Name:       domain.EventComplete,
		DownloadID: dl.ID,
		Filename:   filepath.Base(staging.Path()),
		FilePath:   staging.Path(),
		Message:    "download complete",
	})
}

// StreamDirect runs the retrieval subprocess with its output pointed at
// w, for plans that need no post-processing. The response is complete
// when the subprocess closes its output.
func (o *Orchestrator) StreamDirect(ctx context.Context, url string, plan *domain.FormatPlan, useCredentials bool, w io.Writer) error {
	args := []string{"-f", plan.FormatExpression, "-o", "-", "--no-playlist", "--quiet"}
	args = o.appendCommon(args, useCredentials, url)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, o.config.YTDLPBinary, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &domain.ExecError{
			Command: o.config.YTDLPBinary,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

// buildArgs constructs the subprocess argument plan for a staged
// download.
func (o *Orchestrator) buildArgs(plan *domain.FormatPlan, outputPath string, useCredentials bool, url string) []string {
	args := []string{
		"-f", plan.FormatExpression,
		"-o", outputPath,
		"--no-playlist",
		"--newline",
	}

	switch {
	case plan.Container == domain.ContainerAudio:
		// Stream as-is, no post-processing flags.
	case plan.NeedsMerge():
		args = append(args,
			"--merge-output-format", "mp4",
			"--no-part",
			"--concurrent-fragments", fragmentConcurrency,
			"--postprocessor-args", "ffmpeg:-c copy -movflags +faststart",
		)
	default:
		// Combined format: remux to a standards-compliant MP4 so
		// players stop rejecting transport-stream data behind an .mp4
		// extension. Copy-only, no re-encode.
		args = append(args,
			"--remux-video", "mp4",
			"--postprocessor-args", "ffmpeg:-c copy -movflags +faststart",
		)
	}

	return o.appendCommon(args, useCredentials, url)
}

// appendCommon adds the ffmpeg location, the cookie arguments when the
// download must run in credentialed mode, and the resource locator as
// the final positional argument.
func (o *Orchestrator) appendCommon(args []string, useCredentials bool, url string) []string {
	if o.config.FFmpegDir != "" {
		args = append(args, "--ffmpeg-location", o.config.FFmpegDir)
	}
	if useCredentials {
		args = append(args, o.cookies.Args()...)
	}
	return append(args, url)
}

// awaitArtifact polls for the output file with bounded retries.
func (o *Orchestrator) awaitArtifact(ctx context.Context, path string) bool {
	deadline := time.Now().Add(o.config.ArtifactTimeout)
	for {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(artifactPollInterval)
	}
}

// mergeHeartbeat keeps emitting merging events on a fixed interval so a
// long-running merge does not look stalled to the consumer.
func (o *Orchestrator) mergeHeartbeat(emitter *eventEmitter, stop <-chan struct{}) {
	ticker := time.NewTicker(o.config.MergeHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			emitter.emit(domain.Event{
				Name:    domain.EventMerging,
				Message: "still merging",
			})
		}
	}
}

func (o *Orchestrator) fail(emitter *eventEmitter, staging *StagingFile, message string) {
	o.logger.Error("Download failed", zap.String("message", message))
	emitter.emitTerminal(domain.Event{Name: domain.EventError, Message: message})
	staging.Release("failed")
}

// scanLines reads one pipe line by line into the shared channel.
func scanLines(r io.Reader, lines chan<- string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func appendTail(tail []string, line string) []string {
	tail = append(tail, line)
	if len(tail) > processLogTail {
		tail = tail[1:]
	}
	return tail
}

// eventEmitter serializes event emission and enforces that a terminal
// event is the last event a download ever produces, even when the
// heartbeat goroutine races the main loop.
type eventEmitter struct {
	mu       sync.Mutex
	sink     domain.EventSink
	terminal bool
}

func (e *eventEmitter) emit(event domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.sink.Emit(event)
}

func (e *eventEmitter) isTerminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal
}

func (e *eventEmitter) emitTerminal(event domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return
	}
	e.terminal = true
	e.sink.Emit(event)
}
