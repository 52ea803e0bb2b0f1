// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	m := New()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.RecordRun("p1", 10, 6, 5, 4, at)
	m.RecordRun("p1", 10, 0, 0, 0, at.Add(time.Hour))
	m.RecordRun("p2", 3, 3, 3, 3, at)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("p1")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.Found.WithLabelValues("p1")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.New.WithLabelValues("p1")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Fetched.WithLabelValues("p1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Stored.WithLabelValues("p1")))
	assert.Equal(t, float64(at.Add(time.Hour).Unix()), testutil.ToFloat64(m.LastRun.WithLabelValues("p1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Stored.WithLabelValues("p2")))

	n, err := testutil.GatherAndCount(m.registry, "pms_articles_stored_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordRun("p1", 2, 2, 2, 1, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "pms.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE pms_articles_stored_total counter")
	assert.Contains(t, text, `pms_articles_stored_total{project="p1"} 1`)
	assert.Contains(t, text, `pms_search_found_total{project="p1"} 2`)
	assert.True(t, strings.Contains(text, `pms_last_run_timestamp_seconds{project="p1"}`))
}
