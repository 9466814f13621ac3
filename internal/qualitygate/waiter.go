// Package qualitygate polls an external analysis service for a pass/fail
// verdict. The poll is read-only and idempotent; service latency degrades to
// a TIMEOUT report instead of stalling the pipeline, unless the caller asked
// for an abort.
package qualitygate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"git.home.luguber.info/inful/buildpipe/internal/config"
	"git.home.luguber.info/inful/buildpipe/internal/logfields"
)

// Status is the gate verdict carried by a Report.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarn    Status = "WARN"
	StatusError   Status = "ERROR"
	StatusTimeout Status = "TIMEOUT"
)

// Report is the explicit result value of a gate wait. Callers branch on
// Status; no control flow by exception.
type Report struct {
	Status  Status
	Elapsed time.Duration
	Metrics map[string]any
}

// ErrAborted is returned instead of a Report when the wait was cancelled, or
// when it timed out with abortOnTimeout set. The caller must treat it as an
// aborted build.
var ErrAborted = errors.New("quality gate wait aborted")

const (
	defaultPollInterval = 10 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// Waiter polls one analysis server. Construct with NewWaiter.
type Waiter struct {
	baseURL string
	token   config.Secret
	client  *http.Client
}

// NewWaiter builds a waiter for the configured server. A nil http.Client gets
// a default with a per-request timeout well under any sane poll interval.
func NewWaiter(serverURL string, token config.Secret, client *http.Client) *Waiter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Waiter{baseURL: serverURL, token: token, client: client}
}

// Wait polls until the service reports a terminal verdict (OK/WARN/ERROR) or
// timeout elapses. Connection failures and malformed responses are poll
// misses, not terminal statuses. On timeout with abortOnTimeout false the
// report carries StatusTimeout; with abortOnTimeout true, ErrAborted is
// returned. Context cancellation interrupts the wait promptly with ErrAborted.
func (w *Waiter) Wait(ctx context.Context, projectKey string, pollInterval, timeout time.Duration, abortOnTimeout bool) (Report, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		if status, metrics, ok := w.poll(ctx, projectKey); ok {
			report := Report{Status: status, Elapsed: time.Since(start), Metrics: metrics}
			slog.Info("Quality gate verdict",
				logfields.GateStatus(string(status)),
				logfields.DurationMS(float64(report.Elapsed.Milliseconds())))
			return report, nil
		}
		if ctx.Err() != nil {
			return Report{}, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		sleep := pollInterval
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Report{}, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		case <-timer.C:
		}
	}

	elapsed := time.Since(start)
	if abortOnTimeout {
		slog.Warn("Quality gate timed out, aborting",
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		return Report{}, fmt.Errorf("%w: no verdict within %s", ErrAborted, timeout)
	}
	slog.Warn("Quality gate timed out, degrading",
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return Report{Status: StatusTimeout, Elapsed: elapsed}, nil
}

// statusResponse is the wire shape of the service's answer.
type statusResponse struct {
	Status  string         `json:"status"`
	Metrics map[string]any `json:"metrics"`
}

// poll performs one idempotent status query. The bool result reports whether
// a terminal verdict was obtained; any failure is a miss.
func (w *Waiter) poll(ctx context.Context, projectKey string) (Status, map[string]any, bool) {
	u := fmt.Sprintf("%s/quality-status?projectKey=%s", w.baseURL, url.QueryEscape(projectKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Debug("Quality gate request build failed", logfields.Error(err))
		return "", nil, false
	}
	if !w.token.IsZero() {
		req.Header.Set("Authorization", "Bearer "+w.token.Reveal())
	}

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Debug("Quality gate poll miss", logfields.Error(err))
		return "", nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		slog.Debug("Quality gate poll miss", slog.Int("http_status", resp.StatusCode))
		return "", nil, false
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Debug("Quality gate response decode failed", logfields.Error(err))
		return "", nil, false
	}

	switch Status(body.Status) {
	case StatusOK, StatusWarn, StatusError:
		return Status(body.Status), body.Metrics, true
	default:
		// pending/unknown -> keep polling
		return "", nil, false
	}
}
