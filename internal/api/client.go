// Package api is the HTTP client for the Nimbus control panel. Transient
// failures are retried at the transport layer; application-level failures
// surface as structured errors with the response body attached.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/job"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4096

// Client talks to the control panel REST API.
type Client struct {
	endpoint string
	token    string
	http     *retryablehttp.Client
	log      logger.Logger
}

// NewClient creates a client for the given endpoint, authenticating with the
// given token.
func NewClient(endpoint, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = 3
	rc.Logger = nil

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     rc,
		log:      logger.NewEnvLogger("[api]"),
	}
}

// SetLogger overrides the logger.
func (c *Client) SetLogger(l logger.Logger) {
	c.log = l
}

// SetHTTPClient overrides the underlying HTTP client, used in tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.http.HTTPClient = h
}

// do performs one API call. payload is marshalled as the JSON request body
// when non-nil; the response body is unmarshalled into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrAPI,
				"Couldn't encode request for "+path, "")
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Couldn't build request for "+path, "")
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("%s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Couldn't reach "+c.endpoint,
			"Check your network connection and the endpoint in your global configuration")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drainBody(resp.Body)
		return errors.New(errors.ErrRequest,
			fmt.Sprintf("The control panel rejected your credentials (HTTP %d)", resp.StatusCode),
			"Run 'nimbus login' to refresh your access token")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.New(errors.ErrRequest,
			fmt.Sprintf("%s %s failed with HTTP %d", method, path, resp.StatusCode),
			strings.TrimSpace(string(detail)))
	}

	if out == nil {
		drainBody(resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI,
			"Couldn't decode response from "+path,
			"The server may be running an incompatible version")
	}
	return nil
}

func drainBody(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
}

// CheckToken verifies the stored token by fetching the account it belongs to.
func (c *Client) CheckToken(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/v3/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Applications lists the applications the authenticated user can access,
// grouped with their owning accounts.
func (c *Client) Applications(ctx context.Context) (*ApplicationList, error) {
	var list ApplicationList
	if err := c.do(ctx, http.MethodGet, "/api/v3/applications/", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Deploy triggers a deployment of the given environment.
func (c *Client) Deploy(ctx context.Context, appID int, environment string) error {
	payload := map[string]string{"environment": environment}
	return c.do(ctx, http.MethodPost, appPath(appID, "deployments"), payload, nil)
}

// Deployments fetches deployment history, optionally filtered to one
// environment.
func (c *Client) Deployments(ctx context.Context, appID int, environment string) ([]EnvironmentDeployments, error) {
	path := appPath(appID, "deployments")
	if environment != "" {
		path += "?environment=" + url.QueryEscape(environment)
	}
	var envs []EnvironmentDeployments
	if err := c.do(ctx, http.MethodGet, path, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// EnvironmentVariables fetches the variables of an application's
// environments. Sensitive values come back masked unless the server allows
// otherwise.
func (c *Client) EnvironmentVariables(ctx context.Context, appID int, environment string) ([]EnvironmentVariables, error) {
	path := appPath(appID, "environment-variables")
	if environment != "" {
		path += "?environment=" + url.QueryEscape(environment)
	}
	var envs []EnvironmentVariables
	if err := c.do(ctx, http.MethodGet, path, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// Jobs binds the dump/import job endpoints to one application, satisfying
// the poller's client interface.
func (c *Client) Jobs(appID int) job.Client {
	return &appJobs{c: c, appID: appID}
}

type appJobs struct {
	c     *Client
	appID int
}

type jobRequest struct {
	Environment string `json:"environment"`
	Prefix      string `json:"prefix"`
}

func (a *appJobs) CreateDump(ctx context.Context, environment, prefix string) (*job.SyncJob, error) {
	var j job.SyncJob
	err := a.c.do(ctx, http.MethodPost, appPath(a.appID, "dumps"),
		jobRequest{Environment: environment, Prefix: prefix}, &j)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (a *appJobs) CreateImport(ctx context.Context, environment, prefix string) (*job.SyncJob, error) {
	var j job.SyncJob
	err := a.c.do(ctx, http.MethodPost, appPath(a.appID, "imports"),
		jobRequest{Environment: environment, Prefix: prefix}, &j)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (a *appJobs) StartImport(ctx context.Context, jobID string) error {
	return a.c.do(ctx, http.MethodPost, "/api/v3/jobs/"+jobID+"/start/", nil, nil)
}

func (a *appJobs) JobStatus(ctx context.Context, jobID string) (*job.SyncJob, error) {
	var j job.SyncJob
	if err := a.c.do(ctx, http.MethodGet, "/api/v3/jobs/"+jobID+"/", nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func appPath(appID int, resource string) string {
	return "/api/v3/applications/" + strconv.Itoa(appID) + "/" + resource + "/"
}
