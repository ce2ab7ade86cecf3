/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package claims provides read/write access to the role claims indexed by
// the cache server. All calls go through the authenticated retrying cache
// client; reads can be served from an optional in-memory TTL cache.
package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("iam-client-lib/claims")

const defaultCacheSize = 256

// CacheClient is the authenticated executor the service issues its requests
// through. *cacheclient.Client satisfies it.
type CacheClient interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
	Delete(ctx context.Context, path string) ([]byte, error)
}

// Service reads and writes role claims through the cache server.
type Service struct {
	cacheClient CacheClient
	readCache   gcache.Cache
}

// Option configures the claims service.
type Option func(s *Service)

// WithReadCache enables serving repeated claim lookups from memory for the
// given time to live. Entries for a subject are dropped when a claim is
// requested or deleted through this service instance; writes from elsewhere
// become visible once the TTL lapses.
func WithReadCache(ttl time.Duration) Option {
	return func(s *Service) {
		s.readCache = gcache.New(defaultCacheSize).LRU().Expiration(ttl).Build()
	}
}

// New creates a claims service on top of the given cache client.
func New(cacheClient CacheClient, opts ...Option) *Service {
	s := &Service{cacheClient: cacheClient}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GetClaimsBySubject returns the claims issued about the given DID.
func (s *Service) GetClaimsBySubject(ctx context.Context, did string) ([]Claim, error) {
	return s.getClaimList(ctx, "subject", did)
}

// GetClaimsByRequester returns the claims requested by the given DID.
func (s *Service) GetClaimsByRequester(ctx context.Context, did string) ([]Claim, error) {
	return s.getClaimList(ctx, "requester", did)
}

// GetClaimsByIssuer returns the claims the given DID is asked to issue.
func (s *Service) GetClaimsByIssuer(ctx context.Context, did string) ([]Claim, error) {
	return s.getClaimList(ctx, "issuer", did)
}

// GetClaimByID returns a single claim by its identifier.
func (s *Service) GetClaimByID(ctx context.Context, id string) (*Claim, error) {
	respBytes, err := s.cacheClient.Get(ctx, "/claim/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claim %q: %w", id, err)
	}

	var claim Claim

	if err := json.Unmarshal(respBytes, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim %q: %w", id, err)
	}

	return &claim, nil
}

// RequestClaim submits a claim request on behalf of the given subject DID.
func (s *Service) RequestClaim(ctx context.Context, subject string, request *ClaimRequest) error {
	reqBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal claim request: %w", err)
	}

	if _, err := s.cacheClient.Post(ctx, "/claim/requested/"+url.PathEscape(subject), reqBytes); err != nil {
		return fmt.Errorf("failed to submit claim request: %w", err)
	}

	s.invalidate(subject)

	return nil
}

// DeleteClaim removes a claim by its identifier.
func (s *Service) DeleteClaim(ctx context.Context, id string) error {
	if _, err := s.cacheClient.Delete(ctx, "/claim/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete claim %q: %w", id, err)
	}

	// the claim's subject is not known here, drop everything.
	if s.readCache != nil {
		s.readCache.Purge()
	}

	return nil
}

func (s *Service) getClaimList(ctx context.Context, relation, did string) ([]Claim, error) {
	cacheKey := relation + ":" + did

	if s.readCache != nil {
		if cached, err := s.readCache.Get(cacheKey); err == nil {
			if claimList, ok := cached.([]Claim); ok {
				logger.Debugf("served claims for %s from cache", cacheKey)

				return claimList, nil
			}
		}
	}

	path := fmt.Sprintf("/claim/%s/%s", relation, url.PathEscape(did))

	respBytes, err := s.cacheClient.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims by %s for %q: %w", relation, did, err)
	}

	var claimList []Claim

	if err := json.Unmarshal(respBytes, &claimList); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims by %s for %q: %w", relation, did, err)
	}

	if s.readCache != nil {
		if err := s.readCache.Set(cacheKey, claimList); err != nil {
			logger.Warnf("failed to cache claims for %s: %v", cacheKey, err)
		}
	}

	return claimList, nil
}

func (s *Service) invalidate(subject string) {
	if s.readCache == nil {
		return
	}

	for _, relation := range []string{"subject", "requester", "issuer"} {
		s.readCache.Remove(relation + ":" + subject)
	}
}
