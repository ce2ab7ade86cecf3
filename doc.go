/*
Copyright Inferno Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package iamclientlib enables Go developers to build solutions on top of a
// decentralized identity and access management stack backed by an identity
// cache server.
//
// Packages for end developer usage
//
// pkg/cacheclient: Authenticated client for the identity cache server. It
// transparently logs in, refreshes bearer tokens and retries transient
// failures for every request routed through it.
// Reference: https://pkg.go.dev/github.com/Inferno-Inc/iam-client-lib/pkg/cacheclient
//
// pkg/claims: Read/write access to role claims indexed by the cache server,
// built on top of pkg/cacheclient.
// Reference: https://pkg.go.dev/github.com/Inferno-Inc/iam-client-lib/pkg/claims
//
// Basic workflow
//
//	1) Implement cacheclient.Signer with your key management layer.
//	2) Create a cache client instance using cacheclient.New.
//	3) Create a claims client using claims.New, passing the cache client.
//	4) Use the funcs provided by each client to create your solution!
package iamclientlib
