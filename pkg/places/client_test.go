package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jon4hz/wayfare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextQuery(t *testing.T) {
	assert.Equal(t, "coffee near Austin, TX", TextQuery("coffee", "Austin, TX"))
	assert.Equal(t, "coffee", TextQuery("coffee", ""))
	assert.Equal(t, "coffee", TextQuery(" coffee ", "  "))
}

func TestSearchText(t *testing.T) {
	const upstream = `{"places":[{"id":"abc","displayName":{"text":"Cafe"}}]}`
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, FieldMask, r.Header.Get("X-Goog-FieldMask"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "coffee near Austin, TX", body["textQuery"])
		assert.InDelta(t, 10, body["maxResultCount"], 0)

		fmt.Fprint(w, upstream)
	}))
	defer server.Close()

	client := New(&config.PlacesConfig{APIKey: "test-key", Endpoint: server.URL})
	require.True(t, client.Configured())

	result, err := client.SearchText(context.Background(), TextQuery("coffee", "Austin, TX"))
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, upstream, string(result.Body))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchText_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	}))
	defer server.Close()

	client := New(&config.PlacesConfig{APIKey: "bad", Endpoint: server.URL})
	result, err := client.SearchText(context.Background(), "coffee")
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, http.StatusForbidden, result.StatusCode)

	details, ok := result.Details().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "error")
}

func TestDetails_Text(t *testing.T) {
	r := &Result{StatusCode: http.StatusBadGateway, Body: []byte("upstream down\n")}
	assert.Equal(t, "upstream down", r.Details())
}

func TestNew_DefaultEndpoint(t *testing.T) {
	client := New(&config.PlacesConfig{})
	assert.False(t, client.Configured())
	assert.Equal(t, config.DefaultPlacesEndpoint, client.endpoint)
}
