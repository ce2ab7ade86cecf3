/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package signer provides a mock signer capability for tests.
package signer

import (
	"context"
	"sync"
)

// MockSigner is a mock of the signer capability consumed by the cache
// client.
type MockSigner struct {
	SignValue  string
	ErrSign    error
	DIDValue   string
	lock       sync.Mutex
	challenges []string
}

// Sign records the challenge and returns the configured identity token.
func (s *MockSigner) Sign(_ context.Context, challenge string) (string, error) {
	s.lock.Lock()
	s.challenges = append(s.challenges, challenge)
	s.lock.Unlock()

	if s.ErrSign != nil {
		return "", s.ErrSign
	}

	return s.SignValue, nil
}

// DID returns the configured subject identifier.
func (s *MockSigner) DID() string {
	return s.DIDValue
}

// SignedChallenges returns the challenges passed to Sign, in order.
func (s *MockSigner) SignedChallenges() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.challenges...)
}
