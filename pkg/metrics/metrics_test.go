package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection(t *testing.T) {
	assert.Equal(t, "forward", Direction(false))
	assert.Equal(t, "reverse", Direction(true))
}

func TestHandler(t *testing.T) {
	ScansStarted.WithLabelValues(Direction(true)).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kvrange_scans_total{direction="reverse"}`)
	assert.Contains(t, string(body), "kvrange_open_snapshots")
}
