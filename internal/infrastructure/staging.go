package infrastructure

import (
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StagingFile owns one on-disk staging artifact and guarantees it is
// deleted exactly once no matter how many termination triggers fire
// (delivery finished, client disconnected, stream error) or in what
// order. The guard is a compare-and-set flag, so two triggers racing is
// fine: the loser is a silent no-op.
type StagingFile struct {
	path    string
	delay   time.Duration
	retry   time.Duration
	logger  *zap.Logger
	cleaned atomic.Bool
}

// NewStagingFile creates a cleanup guard for the given path. delay is a
// grace period before the removal so OS file handles can release; retry
// is how long to wait before the single retry after a failed removal.
func NewStagingFile(path string, delay, retry time.Duration, logger *zap.Logger) *StagingFile {
	return &StagingFile{path: path, delay: delay, retry: retry, logger: logger}
}

// Path returns the artifact's filesystem path
func (s *StagingFile) Path() string { return s.path }

// Released reports whether cleanup has already been triggered.
func (s *StagingFile) Released() bool { return s.cleaned.Load() }

// Release triggers cleanup. Only the first call, from whichever trigger
// fires first, performs the removal; the rest are no-ops. Removal
// failures are logged and retried once, never raised.
func (s *StagingFile) Release(reason string) {
	if !s.cleaned.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("Releasing staging file",
		zap.String("path", s.path),
		zap.String("reason", reason))

	go func() {
		time.Sleep(s.delay)
		if err := s.remove(); err != nil {
			s.logger.Warn("Failed to remove staging file, retrying",
				zap.String("path", s.path), zap.Error(err))
			time.Sleep(s.retry)
			if err := s.remove(); err != nil {
				s.logger.Error("Failed to remove staging file",
					zap.String("path", s.path), zap.Error(err))
			}
		}
	}()
}

func (s *StagingFile) remove() error {
	err := os.Remove(s.path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}
