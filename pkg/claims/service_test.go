/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package claims

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/Inferno-Inc/iam-client-lib/pkg/cacheclient"
	"github.com/Inferno-Inc/iam-client-lib/pkg/mock/cacheserver"
	mocksigner "github.com/Inferno-Inc/iam-client-lib/pkg/mock/signer"
)

const (
	subjectDID = "did:ethr:0x0123456789abcdef"
	claimsJSON = `[
		{
			"id": "claim-1",
			"requester": "did:ethr:0x0123456789abcdef",
			"subject": "did:ethr:0x0123456789abcdef",
			"claimType": "installer.roles.contracts.iam.ewc",
			"claimTypeVersion": "1",
			"isAccepted": true,
			"namespace": "contracts.iam.ewc",
			"claimData": {"claimType": "installer.roles.contracts.iam.ewc", "claimTypeVersion": 1}
		}
	]`
)

func newTestService(t *testing.T, srv *cacheserver.Server, opts ...Option) *Service {
	t.Helper()

	client, err := cacheclient.New(srv.URL(), &mocksigner.MockSigner{DIDValue: subjectDID},
		cacheclient.WithBackOff(func() backoff.BackOff {
			return backoff.NewConstantBackOff(5 * time.Millisecond)
		}))
	require.NoError(t, err)

	return New(client, opts...)
}

func TestGetClaimsBySubject(t *testing.T) {
	srv := cacheserver.New(cacheserver.Config{})
	defer srv.Close()

	srv.Handle("/claim/subject/{did}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, subjectDID, mux.Vars(r)["did"])
		_, _ = w.Write([]byte(claimsJSON))
	}, http.MethodGet)

	service := newTestService(t, srv)

	claimList, err := service.GetClaimsBySubject(context.Background(), subjectDID)
	require.NoError(t, err)
	require.Len(t, claimList, 1)
	require.Equal(t, "claim-1", claimList[0].ID)
	require.Equal(t, "installer.roles.contracts.iam.ewc", claimList[0].ClaimType)
	require.True(t, claimList[0].IsAccepted)
}

func TestGetClaimsBySubjectServedFromCache(t *testing.T) {
	srv := cacheserver.New(cacheserver.Config{})
	defer srv.Close()

	srv.Handle("/claim/subject/{did}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsJSON))
	}, http.MethodGet)

	service := newTestService(t, srv, WithReadCache(time.Minute))

	for i := 0; i < 3; i++ {
		claimList, err := service.GetClaimsBySubject(context.Background(), subjectDID)
		require.NoError(t, err)
		require.Len(t, claimList, 1)
	}

	require.Equal(t, 1, srv.Hits("/claim/subject/"+subjectDID))
}

func TestRequestClaimInvalidatesCache(t *testing.T) {
	srv := cacheserver.New(cacheserver.Config{})
	defer srv.Close()

	srv.Handle("/claim/subject/{did}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsJSON))
	}, http.MethodGet)

	srv.Handle("/claim/requested/{did}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}, http.MethodPost)

	service := newTestService(t, srv, WithReadCache(time.Minute))

	_, err := service.GetClaimsBySubject(context.Background(), subjectDID)
	require.NoError(t, err)

	err = service.RequestClaim(context.Background(), subjectDID, &ClaimRequest{
		Token:       "claim-request-jwt",
		ClaimIssuer: []string{"did:ethr:0xissuer"},
		ClaimType:   "installer.roles.contracts.iam.ewc",
	})
	require.NoError(t, err)

	_, err = service.GetClaimsBySubject(context.Background(), subjectDID)
	require.NoError(t, err)

	// the write dropped the cached entry, so the second read went out again.
	require.Equal(t, 2, srv.Hits("/claim/subject/"+subjectDID))
}

func TestGetClaimByID(t *testing.T) {
	srv := cacheserver.New(cacheserver.Config{})
	defer srv.Close()

	srv.Handle("/claim/{id}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] != "claim-1" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte(`{"id": "claim-1", "subject": "` + subjectDID + `"}`))
	}, http.MethodGet)

	service := newTestService(t, srv)

	claim, err := service.GetClaimByID(context.Background(), "claim-1")
	require.NoError(t, err)
	require.Equal(t, subjectDID, claim.Subject)

	_, err = service.GetClaimByID(context.Background(), "missing")
	require.Error(t, err)

	var statusErr *cacheclient.StatusError

	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestDeleteClaimPurgesCache(t *testing.T) {
	srv := cacheserver.New(cacheserver.Config{})
	defer srv.Close()

	srv.Handle("/claim/subject/{did}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsJSON))
	}, http.MethodGet)

	srv.Handle("/claim/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, http.MethodDelete)

	service := newTestService(t, srv, WithReadCache(time.Minute))

	_, err := service.GetClaimsBySubject(context.Background(), subjectDID)
	require.NoError(t, err)

	require.NoError(t, service.DeleteClaim(context.Background(), "claim-1"))

	_, err = service.GetClaimsBySubject(context.Background(), subjectDID)
	require.NoError(t, err)
	require.Equal(t, 2, srv.Hits("/claim/subject/"+subjectDID))
}

func TestDecodeClaimData(t *testing.T) {
	t.Run("test success", func(t *testing.T) {
		data, err := DecodeClaimData(map[string]interface{}{
			"claimType":        "installer.roles.contracts.iam.ewc",
			"claimTypeVersion": 1,
			"requestorFields": []map[string]interface{}{
				{"key": "meterId", "value": "METER-1"},
			},
		})
		require.NoError(t, err)
		require.Equal(t, "installer.roles.contracts.iam.ewc", data.ClaimType)
		require.Equal(t, 1, data.ClaimTypeVersion)
		require.Equal(t, []KeyValue{{Key: "meterId", Value: "METER-1"}}, data.RequestorFields)
	})

	t.Run("test malformed fields", func(t *testing.T) {
		_, err := DecodeClaimData(map[string]interface{}{
			"claimTypeVersion": "not-a-number",
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to decode claim data")
	})
}
