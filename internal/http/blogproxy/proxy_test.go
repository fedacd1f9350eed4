package blogproxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newProxyRouter(upstream string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	p := New(upstream)
	r.Any("/blog/*path", p.Handler)
	return r
}

func TestProxyForwardsPathAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<h1>post</h1>"))
	}))
	defer upstream.Close()

	r := newProxyRouter(upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/blog/posts/hello?ref=home", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotPath != "/blog/posts/hello" {
		t.Fatalf("upstream path = %q", gotPath)
	}
	if gotQuery != "ref=home" {
		t.Fatalf("upstream query = %q", gotQuery)
	}
	if w.Body.String() != "<h1>post</h1>" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestProxyUpstreamDown(t *testing.T) {
	// A closed server port produces a connection error.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	r := newProxyRouter(upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/blog/posts/hello", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestProxyUnconfigured(t *testing.T) {
	r := newProxyRouter("")
	req := httptest.NewRequest(http.MethodGet, "/blog/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestProxyPassesRedirectThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/blog/new-home", http.StatusMovedPermanently)
	}))
	defer upstream.Close()

	r := newProxyRouter(upstream.URL)
	req := httptest.NewRequest(http.MethodGet, "/blog/old", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/blog/new-home" {
		t.Fatalf("location = %q", loc)
	}
}
