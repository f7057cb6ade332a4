// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mdm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenResponse is the token grant payload.
type tokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires,omitzero"`
}

// ensureToken fetches a bearer token if none is cached or the cached
// one is inside the refresh skew.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && c.now().Add(refreshSkew).Before(c.tokenExpiry) {
		return nil
	}

	endpoint := "/api/v1/auth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.id, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token grant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, endpoint)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tr.Token == "" {
		return fmt.Errorf("token grant returned an empty token")
	}

	c.token = tr.Token
	c.tokenExpiry = tr.Expires
	if c.tokenExpiry.IsZero() {
		c.tokenExpiry = tokenExpiryFromJWT(tr.Token, c.now)
	}
	return nil
}

// tokenExpiryFromJWT reads the exp claim out of a JWT without
// verifying its signature. The token is opaque to this client; only
// its lifetime matters for refresh bookkeeping. Falls back to a short
// fixed lifetime when the token is not a parseable JWT.
func tokenExpiryFromJWT(token string, now func() time.Time) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	// Opaque token with no advertised expiry: refresh conservatively.
	return now().Add(5 * time.Minute)
}
