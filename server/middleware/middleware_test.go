package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"pubsub/server/middleware"
)

func TestSet(t *testing.T) {
	var order []string
	record := func(name string) middleware.Interceptor {
		return middleware.InterceptorFunc(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		})
	}
	h := middleware.Set(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), record("first"), record("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantText string
	}{
		{name: "given success when served then log info", status: http.StatusOK, wantText: "level=INFO"},
		{name: "given failure when served then log warn", status: http.StatusNotFound, wantText: "level=WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := slog.New(slog.NewTextHandler(buf, nil))
			h := middleware.NewLogger(logger).Intercept(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/topics", nil))
			assert.Contains(t, buf.String(), tt.wantText)
			assert.Contains(t, buf.String(), "path=/topics")
		})
	}
}

func TestCORS(t *testing.T) {
	routes := map[string][]string{
		"/topics": {http.MethodPost, http.MethodGet},
		"/health": {http.MethodGet},
	}
	tests := []struct {
		name        string
		method      string
		path        string
		preflight   string
		wantStatus  int
		wantMethods string
		wantNext    bool
	}{
		{
			name:        "given preflight on topics when served then answer with its methods",
			method:      http.MethodOptions,
			path:        "/topics",
			preflight:   http.MethodPost,
			wantStatus:  http.StatusNoContent,
			wantMethods: "GET, OPTIONS, POST",
		},
		{
			name:        "given preflight on health when served then only get is allowed",
			method:      http.MethodOptions,
			path:        "/health",
			preflight:   http.MethodGet,
			wantStatus:  http.StatusNoContent,
			wantMethods: "GET, OPTIONS",
		},
		{
			name:       "given preflight on unknown path when served then passed on",
			method:     http.MethodOptions,
			path:       "/unknown",
			preflight:  http.MethodGet,
			wantStatus: http.StatusTeapot,
			wantNext:   true,
		},
		{
			name:       "given options without request method when served then passed on",
			method:     http.MethodOptions,
			path:       "/topics",
			wantStatus: http.StatusTeapot,
			wantNext:   true,
		},
		{
			name:       "given plain request when served then passed on",
			method:     http.MethodGet,
			path:       "/topics",
			wantStatus: http.StatusTeapot,
			wantNext:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := middleware.NewCORS(routes).Intercept(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.preflight != "" {
				req.Header.Set("Access-Control-Request-Method", tt.preflight)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantNext, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, rec.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}
