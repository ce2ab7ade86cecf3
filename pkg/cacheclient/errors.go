/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cacheclient

import (
	"errors"
	"fmt"
)

// errors.
var (
	// ErrAuthenticationFailed is returned when the cache server could not
	// establish a session for the signer's DID, either through a token
	// refresh or a full login.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRetryExhausted is returned when the request kept failing with
	// transient errors until the configured attempt ceiling was reached.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// errRefreshFailed signals that the stored refresh token was rejected.
	// It never crosses the client boundary: it only forces the fallback to
	// a full login.
	errRefreshFailed = errors.New("refresh token rejected")
)

// StatusError is returned when the cache server responds with a non-2xx
// status code. The original status and response body are preserved so that
// callers can inspect what the server reported.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code %d was returned along with the following message: %s", e.Code, e.Body)
}
