/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cacheclient

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 5

	defaultInitialBackOffInterval = 500 * time.Millisecond
)

type options struct {
	httpClient  HTTPClient
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

func newOptions() *options {
	return &options{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		newBackOff:  defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialBackOffInterval

	return b
}

// Option configures the cache client.
type Option func(opts *options)

// WithHTTPClient option is for custom http client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(opts *options) {
		opts.httpClient = httpClient
	}
}

// WithTimeout option is for definition of the HTTP(s) timeout value of each
// round trip to the cache server. It applies to the default http client only;
// a client supplied via WithHTTPClient carries its own timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		if httpClient, ok := opts.httpClient.(*http.Client); ok {
			httpClient.Timeout = timeout
		}
	}
}

// WithMaxAttempts option bounds how many times one logical request is
// attempted before ErrRetryExhausted is returned. The default is 5.
func WithMaxAttempts(maxAttempts uint64) Option {
	return func(opts *options) {
		if maxAttempts > 0 {
			opts.maxAttempts = maxAttempts
		}
	}
}

// WithBackOff option supplies the factory for the backoff schedule applied
// between attempts of one logical request. The default is an exponential
// backoff starting at 500ms.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(opts *options) {
		opts.newBackOff = newBackOff
	}
}
