/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cacheclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentials is the token pair issued by the cache server on a successful
// login or refresh.
type credentials struct {
	AccessToken  string
	RefreshToken string
}

// credentialStore holds the current token pair for one client instance. The
// pair is replaced as a whole on every successful authentication, so readers
// always observe either the previous or the next complete pair, never a mix.
type credentialStore struct {
	lock    sync.RWMutex
	current *credentials
}

// get returns the currently stored pair, or nil before the first login.
func (s *credentialStore) get() *credentials {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.current
}

func (s *credentialStore) set(creds *credentials) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.current = creds
}

// tokenExpired reports whether tok is a JWT whose exp claim lies in the past.
// The signature is not verified: the check only exists to skip network round
// trips that are locally guaranteed to fail. Opaque or unparseable tokens
// report false, the server is the judge of those.
func tokenExpired(tok string, now time.Time) bool {
	claims := jwt.MapClaims{}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return exp.Before(now)
}
