package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Reconnects.WithLabelValues("okx", "checksum").Inc()
	m.Frames.WithLabelValues("okx", "delta").Add(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconnects.WithLabelValues("okx", "checksum")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `streamer_reconnects_total{platform="okx",reason="checksum"} 1`))
	assert.True(t, strings.Contains(text, `streamer_frames_total{kind="delta",platform="okx"} 3`))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}
