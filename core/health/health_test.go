package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/health"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/response"
)

func serve(fn handler.Func) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.Adapt(fn, response.JSONErrorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	rec := serve(health.Liveness)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())

	assert.Equal(t, http.StatusNoContent, serve(health.NoContent).Code)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("db down") }

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()
		rec := serve(health.Readiness(logger.NewNope(), ok, nil, ok))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		t.Parallel()
		var ran bool
		last := func(context.Context) error { ran = true; return nil }
		rec := serve(health.Readiness(nil, fail, last))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "service_unavailable")
		assert.True(t, ran)
	})
}
