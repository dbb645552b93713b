package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	t.Run("all checks up", func(t *testing.T) {
		h := New("test", nil)
		h.RegisterCheck("database", func(context.Context) error { return nil })

		w := serve(h, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("one check down", func(t *testing.T) {
		h := New("test", nil)
		h.RegisterCheck("database", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

		w := serve(h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "up", resp.Checks["database"])
		assert.Equal(t, "down: connection refused", resp.Checks["redis"])
	})
}

func TestStatusReportsSubscribers(t *testing.T) {
	h := New("test", func() int { return 4 })

	w := serve(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Subscribers)
	assert.Equal(t, "test", resp.Environment)
}

func TestLiveness(t *testing.T) {
	w := serve(New("test", nil), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}
