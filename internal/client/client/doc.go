// Package client is the transport layer of the authkeeper client.
//
// # Overview
//
// The package provides:
//  1. The API contract (see the API interface) of the authentication backend:
//     Register, Login, Refresh, Logout, Profile, DeleteAccount and
//     ExchangeOAuthCode.
//  2. An HTTP/JSON implementation (see HTTPClient) built around a single
//     generic Do method that attaches the bearer credential and maps
//     responses to typed errors.
//
// # Error Handling
//
// A response outside the 2xx range becomes *HTTPError carrying the status
// and the server's message. A transport failure (DNS, refused or reset
// connection, timeout) becomes *NetworkError, which also matches
// ErrUnavailable with errors.Is.
//
// The client never retries. Refresh-and-retry on 401 belongs to the token
// lifecycle manager in package auth, and the client never touches the
// credential store.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. Every call takes a context.Context
// and honors its cancellation and deadline.
package client
