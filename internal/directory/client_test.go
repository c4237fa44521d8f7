package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectnotify/internal/config"
	"projectnotify/internal/logger"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, content interface{}) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"result": map[string]interface{}{"content": content},
	})
	require.NoError(t, err)
}

// directoryStub serves the token, project, member search and topic endpoints
// the client talks to.
type directoryStub struct {
	t *testing.T

	tokenCalls   atomic.Int64
	projectCalls atomic.Int64
	topicCalls   atomic.Int64

	projectStatus int
	lastTopicAuth string
	lastTopicBody []byte
}

func (s *directoryStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v3/authorizations/", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		require.NoError(s.t, r.ParseForm())
		assert.Equal(s.t, "test-client", r.PostForm.Get("clientId"))
		assert.Equal(s.t, "test-secret", r.PostForm.Get("secret"))
		writeEnvelope(s.t, w, map[string]string{"token": "tok-123"})
	})

	mux.HandleFunc("/v4/projects/1", func(w http.ResponseWriter, r *http.Request) {
		s.projectCalls.Add(1)
		assert.Equal(s.t, "Bearer tok-123", r.Header.Get("Authorization"))
		if s.projectStatus != 0 {
			w.WriteHeader(s.projectStatus)
			return
		}
		writeEnvelope(s.t, w, map[string]interface{}{
			"id": 1, "name": "test", "status": "reviewed", "type": "app_dev",
			"members": []map[string]interface{}{
				{"userId": 11, "role": "customer", "isPrimary": true},
			},
		})
	})

	mux.HandleFunc("/v3/members/_search/", func(w http.ResponseWriter, r *http.Request) {
		// Member search is unauthenticated.
		assert.Empty(s.t, r.Header.Get("Authorization"))
		switch r.URL.Query().Get("query") {
		case "userId:11":
			writeEnvelope(s.t, w, []map[string]interface{}{
				{"userId": 11, "handle": "magrathea", "firstName": "Arthur", "lastName": "Dent"},
			})
		default:
			writeEnvelope(s.t, w, []map[string]interface{}{})
		}
	})

	mux.HandleFunc("/v4/topics/", func(w http.ResponseWriter, r *http.Request) {
		s.topicCalls.Add(1)
		s.lastTopicAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(s.t, err)
		s.lastTopicBody = body
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	})

	return mux
}

func newStubClient(t *testing.T, tokenTTL time.Duration) (*HTTPClient, *directoryStub) {
	stub := &directoryStub{t: t}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client := NewHTTPClient(config.DirectoryConfig{
		BaseURL:      server.URL,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Timeout:      5 * time.Second,
		TokenTTL:     tokenTTL,
	}, logger.NopLogger())
	return client, stub
}

func TestGetProjectByID(t *testing.T) {
	client, _ := newStubClient(t, time.Minute)

	project, err := client.GetProjectByID(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), project.ID)
	assert.Equal(t, "reviewed", project.Status)
	require.Len(t, project.Members, 1)
	owner, ok := project.Owner()
	require.True(t, ok)
	assert.Equal(t, int64(11), owner.UserID)
}

func TestGetProjectByIDErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "missing project", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "expired credentials", status: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrUnauthorized},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, stub := newStubClient(t, time.Minute)
			stub.projectStatus = tt.status

			_, err := client.GetProjectByID(context.Background(), 1)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetUserByID(t *testing.T) {
	client, _ := newStubClient(t, time.Minute)

	t.Run("found", func(t *testing.T) {
		user, err := client.GetUserByID(context.Background(), 11)
		require.NoError(t, err)
		assert.Equal(t, "Arthur", user.FirstName)
		assert.Equal(t, "Dent", user.LastName)
	})

	t.Run("empty search result maps to not found", func(t *testing.T) {
		_, err := client.GetUserByID(context.Background(), 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSystemTokenCaching(t *testing.T) {
	client, stub := newStubClient(t, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := client.GetProjectByID(context.Background(), 1)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), stub.tokenCalls.Load())
	assert.Equal(t, int64(3), stub.projectCalls.Load())
}

func TestSystemTokenExpiry(t *testing.T) {
	client, stub := newStubClient(t, time.Nanosecond)

	_, err := client.GetSystemToken(context.Background())
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = client.GetSystemToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stub.tokenCalls.Load())
}

func TestCreateTopic(t *testing.T) {
	client, stub := newStubClient(t, time.Minute)

	err := client.CreateTopic(context.Background(), Topic{
		Reference:   "project",
		ReferenceID: "1",
		Tag:         "PRIMARY",
		Title:       "Your project has been created",
		Body:        "Hello",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), stub.topicCalls.Load())
	assert.Equal(t, "Bearer tok-123", stub.lastTopicAuth)

	var sent Topic
	require.NoError(t, json.Unmarshal(stub.lastTopicBody, &sent))
	assert.Equal(t, "project", sent.Reference)
	assert.Equal(t, "PRIMARY", sent.Tag)
}

func TestCreateTopicUnreachableHost(t *testing.T) {
	client := NewHTTPClient(config.DirectoryConfig{
		BaseURL:  "http://127.0.0.1:1",
		Timeout:  200 * time.Millisecond,
		TokenTTL: time.Minute,
	}, logger.NopLogger())

	err := client.CreateTopic(context.Background(), Topic{ReferenceID: "1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
