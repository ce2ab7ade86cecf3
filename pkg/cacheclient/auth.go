/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cacheclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	challengeEndpoint = "/login/challenge"
	loginEndpoint     = "/login"
	refreshEndpoint   = "/refresh_token"
	statusEndpoint    = "/auth/status"

	authGroupKey = "authenticate"
)

// Signer is the capability the blockchain key layer provides to the client:
// proving ownership of a DID by signing a server-issued challenge.
type Signer interface {
	// Sign returns a signed identity token over the given challenge.
	Sign(ctx context.Context, challenge string) (string, error)

	// DID returns the subject identifier the signer proves ownership of.
	DID() string
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

type loginRequest struct {
	IdentityToken string `json:"identityToken"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type statusResponse struct {
	User string `json:"user"`
}

// Login establishes a session with the cache server: it fetches a challenge,
// has the signer produce an identity token over it and exchanges that token
// for a bearer/refresh token pair. Concurrent logins are collapsed into a
// single exchange.
func (c *Client) Login(ctx context.Context) error {
	_, err, _ := c.authGroup.Do(authGroupKey, func() (interface{}, error) {
		return nil, c.login(ctx)
	})

	return err
}

// IsAuthenticated probes the server-side session and reports whether it
// belongs to the signer's DID. The answer is derived fresh on every call:
// sessions can be invalidated server-side independently of the locally stored
// tokens, so a cached answer would go stale without notice.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	respBytes, err := c.send(ctx, http.MethodGet, statusEndpoint, nil, true)
	if err != nil {
		logger.Debugf("authentication status probe failed: %v", err)

		return false
	}

	var status statusResponse

	if err := json.Unmarshal(respBytes, &status); err != nil {
		logger.Debugf("failed to unmarshal authentication status response: %v", err)

		return false
	}

	return status.User != "" && strings.EqualFold(status.User, c.signer.DID())
}

// ensureAuthenticated is the single-flight entry to authentication: if an
// attempt is already in progress the caller waits for its outcome, otherwise
// a new one is started. Under N concurrent requests that all hit a 401 this
// yields exactly one network exchange, and every waiter resumes on its
// result.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	_, err, shared := c.authGroup.Do(authGroupKey, func() (interface{}, error) {
		return nil, c.authenticate(ctx)
	})
	if err != nil {
		return err
	}

	if shared {
		logger.Debugf("authentication outcome shared with concurrent requests")
	}

	return nil
}

// authenticate prefers a token refresh over a full login: refresh is a single
// round trip while login costs an extra challenge signature. A failed refresh
// falls back to login instead of surfacing, and never clears the stored pair
// by itself. Refresh is skipped entirely when no refresh token is stored or
// when the stored one is already expired by its own exp claim.
func (c *Client) authenticate(ctx context.Context) error {
	if creds := c.store.get(); creds != nil && creds.RefreshToken != "" {
		if tokenExpired(creds.RefreshToken, time.Now()) {
			logger.Debugf("stored refresh token is expired, going straight to login")
		} else {
			err := c.refresh(ctx, creds.RefreshToken)
			if err == nil {
				return nil
			}

			logger.Debugf("token refresh failed, falling back to login: %v", err)
		}
	}

	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	challengePath := fmt.Sprintf("%s?did=%s", challengeEndpoint, url.QueryEscape(c.signer.DID()))

	challengeBytes, err := c.send(ctx, http.MethodGet, challengePath, nil, false)
	if err != nil {
		return fmt.Errorf("%w: fetch login challenge: %v", ErrAuthenticationFailed, err)
	}

	var challenge challengeResponse

	if err := json.Unmarshal(challengeBytes, &challenge); err != nil {
		return fmt.Errorf("%w: unmarshal login challenge: %v", ErrAuthenticationFailed, err)
	}

	identityToken, err := c.signer.Sign(ctx, challenge.Challenge)
	if err != nil {
		return fmt.Errorf("%w: sign login challenge: %v", ErrAuthenticationFailed, err)
	}

	reqBytes, err := json.Marshal(&loginRequest{IdentityToken: identityToken})
	if err != nil {
		return fmt.Errorf("%w: marshal login request: %v", ErrAuthenticationFailed, err)
	}

	respBytes, err := c.send(ctx, http.MethodPost, loginEndpoint, reqBytes, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	if err := c.storeTokenResponse(respBytes, "login"); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	refreshPath := fmt.Sprintf("%s?refresh_token=%s", refreshEndpoint, url.QueryEscape(refreshToken))

	respBytes, err := c.send(ctx, http.MethodGet, refreshPath, nil, false)
	if err != nil {
		return fmt.Errorf("%w: %v", errRefreshFailed, err)
	}

	if err := c.storeTokenResponse(respBytes, "refresh"); err != nil {
		return fmt.Errorf("%w: %v", errRefreshFailed, err)
	}

	return nil
}

func (c *Client) storeTokenResponse(respBytes []byte, operation string) error {
	var tokens tokenResponse

	if err := json.Unmarshal(respBytes, &tokens); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", operation, err)
	}

	if tokens.Token == "" {
		return fmt.Errorf("%s response is missing a token", operation)
	}

	c.store.set(&credentials{
		AccessToken:  tokens.Token,
		RefreshToken: tokens.RefreshToken,
	})

	logger.Debugf("stored fresh credentials after %s", operation)

	return nil
}
