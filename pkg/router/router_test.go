package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	}
}

func TestRouterDispatch(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", named("list"))
	r.POST("/api/v1/runs", named("create"))
	r.GET("/api/v1/runs/*", named("get"))
	r.GET("/api/v1/runs/*/errors", named("errors"))
	r.GET("/api/v1/download/*/*", named("download"))
	r.GET("/swagger/*", named("swagger"))

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/api/v1/runs", http.StatusOK, "list"},
		{http.MethodPost, "/api/v1/runs", http.StatusOK, "create"},
		{http.MethodGet, "/api/v1/runs/abc", http.StatusOK, "get"},
		{http.MethodGet, "/api/v1/runs/abc/errors", http.StatusOK, "errors"},
		{http.MethodGet, "/api/v1/download/abc/report.json", http.StatusOK, "download"},
		{http.MethodGet, "/swagger/index.html", http.StatusOK, "swagger"},
		{http.MethodDelete, "/api/v1/runs", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	assert.True(t, matchWildcardRoute("/a/b/c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a/b/d", "/a/*/c"))
	assert.True(t, matchWildcardRoute("/a/b/c/d", "/a/*"))
	assert.False(t, matchWildcardRoute("/b/c", "/a/*"))
}

func TestSpecificity(t *testing.T) {
	assert.Greater(t, specificity("/api/v1/runs/*/errors"), specificity("/api/v1/runs/*"))
	assert.Greater(t, specificity("/api/v1/runs"), specificity("/api/*"))
}
