/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cacheclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
)

// decision is the outcome of classifying one failed request attempt.
type decision int

const (
	decisionFail decision = iota
	decisionRetry
	decisionReauthenticate
)

// retryableStatuses are the status codes worth repeating with the same
// credentials. Most 4xx codes are deliberately absent: a malformed request or
// final resource state does not get better on a second attempt, it only risks
// duplicate side effects.
//
// nolint:gochecknoglobals
var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:                {},
	http.StatusLengthRequired:                {},
	http.StatusPreconditionFailed:            {},
	http.StatusTooEarly:                      {},
	http.StatusUpgradeRequired:               {},
	http.StatusInternalServerError:           {},
	http.StatusNotImplemented:                {},
	http.StatusBadGateway:                    {},
	http.StatusServiceUnavailable:            {},
	http.StatusGatewayTimeout:                {},
	http.StatusHTTPVersionNotSupported:       {},
	http.StatusVariantAlsoNegotiates:         {},
	http.StatusNotExtended:                   {},
	http.StatusNetworkAuthenticationRequired: {},
}

// classify maps a failed attempt to a retry decision. authCall marks calls
// against the login, refresh and status endpoints: those are never retried,
// otherwise a failing identity provider would be hammered recursively by the
// very requests trying to recover from it.
//
// A 401 means the access token went stale, so the remedy is
// re-authentication rather than a plain repeat. Transport-level failures
// (connection refused, reset, timeout, DNS) are repeated as-is. Everything
// else, including errors raised by the caller's own handling of a successful
// response, is final.
func classify(err error, authCall bool) decision {
	if authCall {
		return decisionFail
	}

	var statusErr *StatusError

	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusUnauthorized {
			return decisionReauthenticate
		}

		if _, ok := retryableStatuses[statusErr.Code]; ok {
			return decisionRetry
		}

		return decisionFail
	}

	if isTransportError(err) {
		return decisionRetry
	}

	return decisionFail
}

func isTransportError(err error) bool {
	// a cancelled caller context is not a server hiccup, retrying would only
	// burn attempts on requests nobody is waiting for.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
