package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/job"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-token")
	client.SetLogger(logger.Noop())
	client.http.RetryMax = 0
	return client, server
}

func TestApplicationsSendsToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v3/applications/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ApplicationList{
			Accounts:     []Account{{ID: 1, Type: "organisation", Name: "Acme"}},
			Applications: []Application{{ID: 42, Slug: "acme-site", Name: "Acme Site", OrganisationID: 1}},
		})
	}))

	list, err := client.Applications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Token test-token", gotAuth)
	require.Len(t, list.Applications, 1)
	assert.Equal(t, "acme-site", list.Applications[0].Slug)
}

func TestUnauthorizedSuggestsLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Applications(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRequest))
	assert.Contains(t, err.Error(), "nimbus login")
}

func TestServerErrorIncludesBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail": "a dump is already in progress"}`))
	}))

	err := client.Deploy(context.Background(), 42, "test")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRequest))
	assert.Contains(t, err.Error(), "a dump is already in progress")
	assert.Contains(t, err.Error(), "409")
}

func TestCreateDumpPostsEnvironmentAndPrefix(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/applications/42/dumps/", r.URL.Path)

		var req jobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test", req.Environment)
		assert.Equal(t, "DEFAULT", req.Prefix)

		_ = json.NewEncoder(w).Encode(job.SyncJob{ID: "aaaa-bbbb", Status: job.StatusPending})
	}))

	j, err := client.Jobs(42).CreateDump(context.Background(), "test", "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-bbbb", j.ID)
	assert.Equal(t, job.StatusPending, j.Status)
}

func TestJobStatusRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/jobs/aaaa-bbbb/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(job.SyncJob{
			ID:          "aaaa-bbbb",
			Status:      job.StatusReady,
			DownloadURL: "https://storage.example.com/dump.sql.gz?sig=abc",
		})
	}))

	j, err := client.Jobs(42).JobStatus(context.Background(), "aaaa-bbbb")
	require.NoError(t, err)
	assert.True(t, j.Status.Terminal())
	assert.Contains(t, j.DownloadURL, "sig=abc")
}

func TestStartImport(t *testing.T) {
	var called bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/jobs/aaaa-bbbb/start/", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))

	require.NoError(t, client.Jobs(42).StartImport(context.Background(), "aaaa-bbbb"))
	assert.True(t, called)
}

func TestDeploymentsFiltersEnvironment(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "live", r.URL.Query().Get("environment"))
		_ = json.NewEncoder(w).Encode([]EnvironmentDeployments{
			{Environment: "live", Deployments: []Deployment{{UUID: "d-1", Status: "completed", Success: true}}},
		})
	}))

	envs, err := client.Deployments(context.Background(), 42, "live")
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].Deployments[0].Success)
}

func TestCheckToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/me/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(User{ID: 7, Email: "dev@acme.test", Name: "Dev"})
	}))

	user, err := client.CheckToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev@acme.test", user.Email)
}

func TestUnreachableEndpoint(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "token")
	client.SetLogger(logger.Noop())
	client.http.RetryMax = 0

	_, err := client.Applications(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAPI))
}
