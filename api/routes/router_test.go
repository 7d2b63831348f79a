package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

func testRouter() http.Handler {
	return NewRouter(RouterParams{
		Config:  &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Monitor: health.NewMonitor(),
	})
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := testRouter()

	for _, path := range []string{"/health/live", "/health/channels", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.Code)
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
