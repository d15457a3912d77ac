package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// authMarkers are stderr substrings that indicate the tool was refused
// for lack of an authenticated session.
var authMarkers = []string{
	"Sign in to confirm",
	"not a bot",
	"login required",
	"Use --cookies",
}

// RunResult is the outcome of an authenticated tool invocation.
// UsedCredentials records which mode succeeded so that a later call for
// the same resource can be made in the identical authentication state.
type RunResult struct {
	Output          []byte
	UsedCredentials bool
}

// AuthRunner runs the extraction tool with an authenticated-session
// fallback policy:
//
//  1. If a cookie file exists, run with it. On failure, retry once
//     without; if that also fails, surface the credentialed attempt's
//     error, not the fallback's.
//  2. If no cookie file exists, run without. If the failure text looks
//     like an authentication refusal and a cookie file exists by now
//     (re-checked, the first check may be stale), retry once with it.
//
// Format inspection and the eventual download must both go through the
// same runner so the formats they see do not diverge.
type AuthRunner struct {
	cookies *CookieResolver
	logger  *zap.Logger
}

// NewAuthRunner creates a new authenticated execution wrapper
func NewAuthRunner(cookies *CookieResolver, logger *zap.Logger) *AuthRunner {
	return &AuthRunner{cookies: cookies, logger: logger}
}

// Run executes the command under the fallback policy. The last argument
// is assumed to be the resource locator; cookie arguments are inserted
// before it.
func (r *AuthRunner) Run(ctx context.Context, binary string, args ...string) (*RunResult, error) {
	if path, ok := r.cookies.Locate(); ok {
		output, credErr := r.runOnce(ctx, binary, withCookieArgs(args, path))
		if credErr == nil {
			return &RunResult{Output: output, UsedCredentials: true}, nil
		}

		r.logger.Warn("Credentialed run failed, retrying without cookies",
			zap.String("binary", binary), zap.Error(credErr))
		output, err := r.runOnce(ctx, binary, args)
		if err == nil {
			return &RunResult{Output: output, UsedCredentials: false}, nil
		}
		// Both modes failed; the credentialed error is the one the
		// caller acted on first and the one worth reporting.
		return nil, credErr
	}

	output, err := r.runOnce(ctx, binary, args)
	if err == nil {
		return &RunResult{Output: output, UsedCredentials: false}, nil
	}

	if isAuthError(err) {
		// Re-check at the point of use: a cookie file may have
		// appeared since the check above.
		if path, ok := r.cookies.Locate(); ok {
			r.logger.Info("Auth refusal detected, retrying with cookies",
				zap.String("binary", binary), zap.String("cookie_file", path))
			output, retryErr := r.runOnce(ctx, binary, withCookieArgs(args, path))
			if retryErr == nil {
				return &RunResult{Output: output, UsedCredentials: true}, nil
			}
			return nil, retryErr
		}
	}
	return nil, err
}

// runOnce executes the command a single time, capturing stdout as the
// result and stderr for diagnostics.
func (r *AuthRunner) runOnce(ctx context.Context, binary string, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &domain.ExecError{
			Command: binary,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}

// withCookieArgs inserts the cookie arguments before the final
// positional argument (the resource locator).
func withCookieArgs(args []string, cookiePath string) []string {
	if len(args) == 0 {
		return []string{"--cookies", cookiePath}
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, args[:len(args)-1]...)
	out = append(out, "--cookies", cookiePath, args[len(args)-1])
	return out
}

// isAuthError reports whether an execution error's captured stderr
// indicates an authentication or bot-detection refusal.
func isAuthError(err error) bool {
	var execErr *domain.ExecError
	if !errors.As(err, &execErr) {
		return false
	}
	for _, marker := range authMarkers {
		if strings.Contains(execErr.Stderr, marker) {
			return true
		}
	}
	return false
}
