// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil executes HTTP calls against rate-limited APIs.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 5 * time.Second
)

// ErrRateLimited is returned when every attempt was answered with HTTP 429.
var ErrRateLimited = errors.New("rate limited: retries exhausted")

// StatusError reports a non-2xx, non-429 response. Such responses are not
// retried.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Waiter blocks until the next outbound call is permitted.
type Waiter interface {
	Wait(ctx context.Context) error
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NextDelay returns the backoff before retry number attempt (zero-based):
// base, 2*base, 4*base, ...
func NextDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

// Retrier executes HTTP requests, waiting on Limiter before every attempt
// and retrying only HTTP 429 (Too Many Requests) with exponential backoff.
// Transport errors and any other error status fail immediately.
type Retrier struct {
	Client  *http.Client
	Limiter Waiter

	// MaxRetries bounds the retries after a 429; a request is attempted at
	// most MaxRetries+1 times. Zero or less uses the default (3).
	MaxRetries int

	// BaseDelay is the first backoff; zero or less uses the default (5s).
	BaseDelay time.Duration

	// Sleep performs backoff waits. Tests substitute a recorder.
	Sleep SleepFunc

	Logger *zap.Logger
}

// Do executes req and returns the response for a 2xx status. The caller
// closes the body. On failure the response body has already been drained
// and closed. Do never sleeps after the final attempt, so the cumulative
// backoff for one request is at most BaseDelay*(2^MaxRetries-1).
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		log.Debug("http request", zap.String("url", req.URL.Redacted()), zap.Int("attempt", attempt+1))
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, fmt.Errorf("HTTP request: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			if attempt >= maxRetries {
				return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt+1)
			}
			backoff := NextDelay(base, attempt)
			log.Warn("rate limit exceeded, backing off",
				zap.Duration("wait", backoff),
				zap.Int("retry", attempt+1),
				zap.Int("max_retries", maxRetries))
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			drain(resp)
			return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		default:
			return resp, nil
		}
	}
}

// Get issues a GET for url through Do and returns the full body.
func (r *Retrier) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
