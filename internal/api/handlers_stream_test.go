package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStreamEmitsInitialSnapshot covers spec §8 Scenario F's first half:
// a stream client immediately receives an event carrying the current
// sorted flag list, framed as the literal "event:data\ndata:...\n\n"
// text spec §4.4 mandates.
func TestStreamEmitsInitialSnapshot(t *testing.T) {
	_, h, token := testApp(t)

	doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
		"key": "dark_mode", "value": true, "enabled": true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/acme/prod/", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:data\ndata:"))
	assert.Contains(t, body, "dark_mode")
}
