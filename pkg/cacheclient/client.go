/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cacheclient provides an authenticated client for the identity
// cache server. Every request routed through it carries the freshest stored
// bearer token, transient failures are retried with backoff, and a rejected
// token triggers a single-flight re-authentication shared by all concurrent
// requests.
package cacheclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/sync/singleflight"
)

var logger = log.New("iam-client-lib/cacheclient")

const contentTypeApplicationJSON = "application/json"

// HTTPClient interface for the http client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFunc performs one outbound call against the cache server and
// returns the response body. Implementations should build their request with
// Client.Send (or return *StatusError/transport errors themselves) so that
// failures stay classifiable.
type RequestFunc func(ctx context.Context) ([]byte, error)

// Client talks to the identity cache server on behalf of one signer. All
// mutable state (the token pair and the in-flight authentication marker) is
// owned by the instance, so independent clients in the same process never
// share sessions.
type Client struct {
	serverURL   string
	httpClient  HTTPClient
	signer      Signer
	store       *credentialStore
	authGroup   singleflight.Group
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

// New creates a cache server client for the given signer.
func New(serverURL string, signer Signer, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, fmt.Errorf("cache server URL invalid: %w", err)
	}

	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}

	options := newOptions()

	for _, opt := range opts {
		opt(options)
	}

	return &Client{
		serverURL:   serverURL,
		httpClient:  options.httpClient,
		signer:      signer,
		store:       &credentialStore{},
		maxAttempts: options.maxAttempts,
		newBackOff:  options.newBackOff,
	}, nil
}

// Execute runs fn until it succeeds, fails permanently, or the attempt
// ceiling is reached. A successful first attempt returns immediately. On
// failure the retry classifier decides: transient errors are repeated with
// backoff using the same credentials, a 401 re-authenticates through the
// single-flight group before the next attempt, anything else is surfaced
// unchanged. When re-authentication itself fails, that failure replaces the
// original 401 - it is the more actionable of the two.
func (c *Client) Execute(ctx context.Context, fn RequestFunc) ([]byte, error) {
	requestID := uuid.New().String()

	var (
		result    []byte
		attempt   int
		permanent bool
	)

	operation := func() error {
		attempt++

		respBytes, err := fn(ctx)
		if err == nil {
			result = respBytes

			return nil
		}

		switch classify(err, false) {
		case decisionRetry:
			logger.Debugf("request %s attempt %d failed with a transient error, retrying: %v", requestID, attempt, err)

			return err
		case decisionReauthenticate:
			logger.Debugf("request %s attempt %d was unauthorized, re-authenticating", requestID, attempt)

			if authErr := c.ensureAuthenticated(ctx); authErr != nil {
				permanent = true

				return backoff.Permanent(authErr)
			}

			return err
		default:
			permanent = true

			return backoff.Permanent(err)
		}
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxAttempts-1), ctx))
	if err == nil {
		return result, nil
	}

	if permanent || errors.Is(err, ctx.Err()) {
		return nil, err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
}

// Get issues an authenticated GET against path through the retrying executor
// and returns the response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, http.MethodGet, path, nil, true)
	})
}

// Post issues an authenticated POST with a JSON body against path through
// the retrying executor and returns the response body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, http.MethodPost, path, body, true)
	})
}

// Delete issues an authenticated DELETE against path through the retrying
// executor and returns the response body.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, http.MethodDelete, path, nil, true)
	})
}

// Send performs one outbound call without the retry loop, attaching the
// freshest stored bearer token. It is the building block for custom
// RequestFuncs passed to Execute.
func (c *Client) Send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.send(ctx, method, path, body, true)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, withAuth bool) ([]byte, error) {
	endpoint := c.serverURL + path

	var bodyReader io.Reader

	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if len(body) > 0 {
		req.Header.Set("Content-Type", contentTypeApplicationJSON)
	}

	if withAuth {
		if creds := c.store.get(); creds != nil && creds.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}

	resp, err := c.httpClient.Do(req) //nolint: bodyclose
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	defer closeResponseBody(resp.Body)

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBytes)}
	}

	return respBytes, nil
}

func closeResponseBody(respBody io.Closer) {
	err := respBody.Close()
	if err != nil {
		logger.Errorf("Failed to close response body: %v", err)
	}
}
