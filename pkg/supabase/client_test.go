package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jon4hz/wayfare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, serviceRoleKey string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&config.SupabaseConfig{
		URL:            server.URL,
		AnonKey:        "anon-key",
		ServiceRoleKey: serviceRoleKey,
	})
}

func TestQuery_Find(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/trips", r.URL.Path)
		assert.Equal(t, "eq.owner-1", r.URL.Query().Get("owner_id"))
		assert.Equal(t, `in.("a","b")`, r.URL.Query().Get("id"))
		assert.Equal(t, "start_date.asc,created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"a","name":"Lisbon"},{"id":"b","name":"Porto"}]`)
	}, "")

	ctx := WithAccessToken(context.Background(), "user-token")
	var rows []row
	err := client.From("trips").
		Select("*").
		Eq("owner_id", "owner-1").
		In("id", []string{"a", "b"}).
		Order("start_date", true).
		Order("created_at", false).
		Find(ctx, &rows)
	require.NoError(t, err)
	assert.Equal(t, []row{{ID: "a", Name: "Lisbon"}, {ID: "b", Name: "Porto"}}, rows)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ada@example.com", "ada@example.com"},
		{"a_b@example.com", `a\_b@example.com`},
		{"100%", `100\%`},
		{`back\slash`, `back\\slash`},
		{"star*", "star*"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeLike(tt.in))
		})
	}
}

func TestQuery_FirstNoRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[]`)
	}, "")

	var r row
	err := client.From("profiles").Eq("id", "missing").First(context.Background(), &r)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestQuery_ServiceRoleKeyWins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}, "service-key")

	ctx := WithAccessToken(context.Background(), "user-token")
	var rows []row
	require.NoError(t, client.From("profiles").Find(ctx, &rows))
}

func TestQuery_InsertAndUpsert(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, r.Header.Get("Prefer")+" "+r.URL.Query().Get("on_conflict")+" "+string(body))
		if r.Header.Get("Prefer") == "return=representation" {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `[{"id":"new","name":"Dinner"}]`)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}, "")

	var inserted []row
	err := client.From("activities").Insert(context.Background(), map[string]string{"name": "Dinner"}, &inserted)
	require.NoError(t, err)
	assert.Equal(t, "new", inserted[0].ID)

	err = client.From("user_activities").Upsert(context.Background(), []map[string]string{{"user_id": "u"}}, "user_id,trip_id,activity_id", true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`return=representation  {"name":"Dinner"}`,
		`resolution=ignore-duplicates,return=minimal user_id,trip_id,activity_id [{"user_id":"u"}]`,
	}, calls)
}

func TestQuery_Count(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))
		w.Header().Set("Content-Range", "*/42")
	}, "")

	n, err := client.From("profiles").Eq("status", "pending").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRPC(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/get_user_trips", r.URL.Path)
		var params map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, map[string]string{"query_user_id": "user-1"}, params)
		fmt.Fprint(w, `[{"id":"t1","name":"Lisbon"}]`)
	}, "")

	var rows []row
	err := client.RPC(context.Background(), "get_user_trips", map[string]string{"query_user_id": "user-1"}, &rows)
	require.NoError(t, err)
	assert.Equal(t, []row{{ID: "t1", Name: "Lisbon"}}, rows)
}

func TestErrorParsing(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{
			name:    "postgrest",
			status:  http.StatusBadRequest,
			body:    `{"code":"22P02","message":"invalid input syntax","details":null,"hint":null}`,
			code:    "22P02",
			message: "invalid input syntax",
		},
		{
			name:    "gotrue oauth",
			status:  http.StatusBadRequest,
			body:    `{"error":"invalid_grant","error_description":"Invalid login credentials"}`,
			code:    "invalid_grant",
			message: "Invalid login credentials",
		},
		{
			name:    "gotrue api",
			status:  http.StatusUnprocessableEntity,
			body:    `{"code":422,"error_code":"weak_password","msg":"Password should be at least 6 characters"}`,
			code:    "weak_password",
			message: "Password should be at least 6 characters",
		},
		{
			name:    "plain text",
			status:  http.StatusBadGateway,
			body:    "bad gateway",
			message: "bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, "")

			var rows []row
			err := client.From("trips").Find(context.Background(), &rows)
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.True(t, IsStatus(err, tt.status))
			assert.False(t, IsStatus(err, http.StatusTeapot))
		})
	}
}
