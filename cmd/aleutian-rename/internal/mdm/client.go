// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package mdm talks to the device-management server that holds the
canonical identity for each enrolled host.

# Problem Statement

The rename tool needs exactly three things from the management server:
the target login and display name assigned to this host's serial
number, a way to tell "this host has no assignment" apart from "the
server is unreachable or rejected our credentials" (the former means
the run must stop before any mutation; both are fatal for the run),
and a post-rename inventory resync so the server picks up the new
identity without waiting for the next check-in.

# Authentication

The server issues short-lived bearer tokens against API client
credentials. The token response carries an expiry timestamp; when the
server omits it, the expiry is read from the token's JWT `exp` claim
(decoded without signature verification; the token is opaque to us,
we only need its lifetime). Tokens are refreshed when a request finds
the cached token inside the refresh skew.

# Usage

	client := mdm.NewClient(mdm.ClientConfig{
	    BaseURL:      cfg.Server.BaseURL,
	    ClientID:     cfg.Server.ClientID,
	    ClientSecret: cfg.Server.ClientSecret,
	})

	assignment, err := client.Assignment(ctx, serial)
	if errors.Is(err, mdm.ErrNoAssignment) {
	    // no record for this host: stop, nothing mutated
	}
*/
package mdm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAssignment means the server has no identity record for this
// host's serial number. Fatal for the run, but distinct from
// transport or auth failures.
var ErrNoAssignment = errors.New("no identity assignment for this host")

// APIError is a non-success response from the management server.
type APIError struct {
	// StatusCode is the HTTP status the server returned.
	StatusCode int

	// Endpoint is the path that failed.
	Endpoint string

	// Body is the (truncated) response body for diagnostics.
	Body string
}

// Error returns a formatted error message.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("management server %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("management server %s returned %d", e.Endpoint, e.StatusCode)
}

// Assignment is the canonical identity the server asserts for a host.
type Assignment struct {
	// LoginName is the target login name. The server returning an
	// empty login name is a hard precondition failure for the run.
	LoginName string `json:"username"`

	// DisplayName is the target human-readable full name.
	DisplayName string `json:"real_name"`
}

// ClientConfig configures a management server client.
type ClientConfig struct {
	// BaseURL is the server root, e.g. "https://mdm.example.com".
	BaseURL string

	// ClientID and ClientSecret are the API client credentials used
	// for the token grant.
	ClientID     string
	ClientSecret string

	// HTTPClient overrides the default HTTP client. Default: a client
	// with a 30 second timeout.
	HTTPClient *http.Client

	// Now overrides the clock for token-expiry tests.
	Now func() time.Time
}

// Client is a management server API client with cached bearer tokens.
//
// # Thread Safety
//
// Client is used from a single goroutine; the rename run is strictly
// sequential.
type Client struct {
	baseURL string
	id      string
	secret  string
	http    *http.Client
	now     func() time.Time

	token       string
	tokenExpiry time.Time
}

// refreshSkew is how long before expiry a cached token is discarded.
const refreshSkew = 30 * time.Second

// NewClient creates a Client from the given configuration.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		id:      cfg.ClientID,
		secret:  cfg.ClientSecret,
		http:    httpClient,
		now:     now,
	}
}

// Assignment fetches the canonical identity assigned to the host with
// the given serial number.
//
// Returns ErrNoAssignment (wrapped) when the server has no record for
// the serial; any other non-200 response or transport failure is
// returned as-is and the caller treats it as fatal for the run.
func (c *Client) Assignment(ctx context.Context, serial string) (Assignment, error) {
	var assignment Assignment

	endpoint := "/api/v1/device-assignments/" + serial
	resp, err := c.authedRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return assignment, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return assignment, fmt.Errorf("serial %s: %w", serial, ErrNoAssignment)
	default:
		return assignment, readAPIError(resp, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(&assignment); err != nil {
		return assignment, fmt.Errorf("decode assignment response: %w", err)
	}
	if assignment.LoginName == "" {
		return assignment, fmt.Errorf("assignment for serial %s has an empty login name", serial)
	}
	return assignment, nil
}

// Resync asks the server to re-inventory the host so the renamed
// identity is reflected without waiting for the next check-in.
func (c *Client) Resync(ctx context.Context, serial string) error {
	endpoint := "/api/v1/device-assignments/" + serial + "/resync"
	resp, err := c.authedRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return readAPIError(resp, endpoint)
	}
	return nil
}

// authedRequest performs a request with a valid bearer token,
// fetching or refreshing the token first when needed.
func (c *Client) authedRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management server request %s: %w", endpoint, err)
	}
	return resp, nil
}

// readAPIError drains a failed response into an APIError.
func readAPIError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Body:       strings.TrimSpace(string(body)),
	}
}
