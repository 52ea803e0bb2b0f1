// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep captures backoff durations without sleeping.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

// countingWaiter counts limiter waits.
type countingWaiter struct {
	n int32
}

func (w *countingWaiter) Wait(context.Context) error {
	atomic.AddInt32(&w.n, 1)
	return nil
}

func statusServer(t *testing.T, calls *int32, status func(n int32) int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(calls, 1)
		code := status(n)
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write([]byte("ok"))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNextDelay(t *testing.T) {
	base := 5 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextDelay(base, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetrier_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusOK })

	waiter := &countingWaiter{}
	sl := &recordingSleep{}
	r := &Retrier{Client: ts.Client(), Limiter: waiter, Sleep: sl.sleep}

	body, err := r.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&waiter.n))
	assert.Empty(t, sl.delays)
}

func TestRetrier_RetriesThen200(t *testing.T) {
	var calls int32
	ts := statusServer(t, &calls, func(n int32) int {
		if n <= 2 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	})

	waiter := &countingWaiter{}
	sl := &recordingSleep{}
	r := &Retrier{Client: ts.Client(), Limiter: waiter, MaxRetries: 3, BaseDelay: time.Second, Sleep: sl.sleep}

	body, err := r.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// The limiter is consulted before every attempt.
	assert.Equal(t, int32(3), atomic.LoadInt32(&waiter.n))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sl.delays)
}

func TestRetrier_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusTooManyRequests })

	sl := &recordingSleep{}
	maxRetries := 3
	r := &Retrier{Client: ts.Client(), MaxRetries: maxRetries, BaseDelay: 5 * time.Second, Sleep: sl.sleep}

	body, err := r.Get(context.Background(), ts.URL, nil)
	assert.Nil(t, body)
	assert.ErrorIs(t, err, ErrRateLimited)

	// 1 initial + 3 retries = 4 total calls.
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
	// No sleep after the final attempt: 5+10+20 = 5*(2^3-1).
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, sl.delays)
}

func TestRetrier_DefaultMaxRetries(t *testing.T) {
	var calls int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusTooManyRequests })

	sl := &recordingSleep{}
	r := &Retrier{Client: ts.Client(), Sleep: sl.sleep}

	_, err := r.Get(context.Background(), ts.URL, nil)
	assert.ErrorIs(t, err, ErrRateLimited)

	// 1 initial + 3 default retries = 4 total calls.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, defaultBaseDelay, sl.delays[0])
}

func TestRetrier_Non429ErrorNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls int32
			ts := statusServer(t, &calls, func(int32) int { return code })

			sl := &recordingSleep{}
			r := &Retrier{Client: ts.Client(), Sleep: sl.sleep}

			_, err := r.Get(context.Background(), ts.URL, nil)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, code, statusErr.StatusCode)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Empty(t, sl.delays)
		})
	}
}

func TestRetrier_TransportErrorNotRetried(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	sl := &recordingSleep{}
	r := &Retrier{Client: &http.Client{Timeout: time.Second}, Sleep: sl.sleep}

	_, err := r.Get(context.Background(), url, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, sl.delays)
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	var calls int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusTooManyRequests })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := &Retrier{Client: ts.Client(), BaseDelay: 500 * time.Millisecond}

	_, err := r.Get(ctx, ts.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetrier_ForwardsHeaders(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	r := &Retrier{Client: ts.Client()}
	_, err := r.Get(context.Background(), ts.URL, http.Header{"User-Agent": {"pms/test"}})
	require.NoError(t, err)
	assert.Equal(t, "pms/test", gotUA)
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
