package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCSRFKey = []byte("0123456789abcdef0123456789abcdef")

func newCSRFRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CSRF(testCSRFKey, false))
	r.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	r.POST("/form", func(c *gin.Context) {
		c.String(http.StatusOK, "saved")
	})
	r.POST("/api/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func TestCSRF_RejectsFormWithoutToken(t *testing.T) {
	r := newCSRFRouter()

	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "saved")
}

func TestCSRF_AcceptsFormWithToken(t *testing.T) {
	r := newCSRFRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()
	require.NotEmpty(t, token)

	form := url.Values{CSRFFieldName: {token}, "name": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "saved", w.Body.String())
}

func TestCSRF_ExemptsJSON(t *testing.T) {
	r := newCSRFRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/json", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(m.Instrument())
	r.GET("/trips/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trips/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	m.ObservePlacesSearch(http.StatusOK)
	m.ObservePlacesSearch(0)
	m.ObserveJoinRows("join_all", 3)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `wayfare_http_requests_total{method="GET",route="/trips/:id",status="204"} 2`)
	assert.Contains(t, out, `wayfare_places_searches_total{status="200"} 1`)
	assert.Contains(t, out, `wayfare_places_searches_total{status="error"} 1`)
	assert.Contains(t, out, `wayfare_planner_join_rows_total{operation="join_all"} 3`)
	assert.NotContains(t, out, `route="/metrics"`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePlacesSearch(http.StatusOK)
		m.ObserveJoinRows("join_all", 1)
	})
}
