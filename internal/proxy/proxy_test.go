package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Errors(t *testing.T) {
	_, err := New("", 0, nil)
	assert.ErrorIs(t, err, ErrNoUpstream)

	_, err = New("://bad", 0, nil)
	assert.Error(t, err)

	_, err = New("localhost:8080", 0, nil)
	assert.Error(t, err)
}

func TestProxy_ForwardsHeaders(t *testing.T) {
	var gotGeo, gotXFF, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGeo = r.Header.Get("X-Geo-IP")
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotPath = r.URL.Path
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brewed"))
	}))
	defer upstream.Close()

	p, err := New(upstream.URL, 0, nil)
	require.NoError(t, err)
	defer p.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Header.Set("X-Geo-IP", "US")
		c.Next()
	})
	r.NoRoute(p.Handle)

	req := httptest.NewRequest(http.MethodGet, "/some/page", nil)
	req.RemoteAddr = "8.8.8.8:4711"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "brewed", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Equal(t, "US", gotGeo)
	assert.Equal(t, "8.8.8.8", gotXFF)
	assert.Equal(t, "/some/page", gotPath)
}

func TestProxy_AppendsForwardedFor(t *testing.T) {
	var gotXFF string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotXFF = r.Header.Get("X-Forwarded-For")
	}))
	defer upstream.Close()

	p, err := New(upstream.URL, 0, nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(p.Handle)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4711"
	req.Header.Set("X-Forwarded-For", "8.8.8.8")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "8.8.8.8, 10.0.0.1", gotXFF)
}

func TestProxy_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	p, err := New(url, 0, nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(p.Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProxy_JoinsRepeatedForwardedFor(t *testing.T) {
	var got []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Values("X-Forwarded-For")
	}))
	defer upstream.Close()

	p, err := New(upstream.URL, 0, nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(p.Handle)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4711"
	req.Header.Add("X-Forwarded-For", "8.8.8.8, 172.16.0.1")
	req.Header.Add("X-Forwarded-For", "192.168.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"8.8.8.8, 172.16.0.1, 192.168.0.1, 10.0.0.1"}, got)
}
