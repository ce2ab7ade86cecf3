/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package claims

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Claim is a role claim as indexed by the cache server.
type Claim struct {
	ID               string                 `json:"id"`
	Requester        string                 `json:"requester"`
	Subject          string                 `json:"subject"`
	ClaimIssuer      []string               `json:"claimIssuer"`
	ClaimType        string                 `json:"claimType"`
	ClaimTypeVersion string                 `json:"claimTypeVersion"`
	Token            string                 `json:"token"`
	IssuedToken      string                 `json:"issuedToken"`
	IsAccepted       bool                   `json:"isAccepted"`
	IsRejected       bool                   `json:"isRejected"`
	Namespace        string                 `json:"namespace"`
	CreatedAt        string                 `json:"createdAt"`
	ClaimData        map[string]interface{} `json:"claimData"`
}

// ClaimRequest is the payload submitted when a subject asks an issuer for a
// role claim.
type ClaimRequest struct {
	ID                string                 `json:"id"`
	Token             string                 `json:"token"`
	ClaimIssuer       []string               `json:"claimIssuer"`
	ClaimType         string                 `json:"claimType"`
	RegistrationTypes []string               `json:"registrationTypes,omitempty"`
	ClaimData         map[string]interface{} `json:"claimData,omitempty"`
}

// KeyValue is one free-form field inside claim data.
type KeyValue struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

// ClaimData is the typed view over the free-form claimData document carried
// by claims and claim requests.
type ClaimData struct {
	ClaimType        string     `mapstructure:"claimType"`
	ClaimTypeVersion int        `mapstructure:"claimTypeVersion"`
	RequestorFields  []KeyValue `mapstructure:"requestorFields"`
	IssuerFields     []KeyValue `mapstructure:"issuerFields"`
}

// DecodeClaimData decodes the free-form claimData document into its typed
// form.
func DecodeClaimData(in map[string]interface{}) (*ClaimData, error) {
	var out ClaimData

	if err := mapstructure.Decode(in, &out); err != nil {
		return nil, fmt.Errorf("failed to decode claim data: %w", err)
	}

	return &out, nil
}
