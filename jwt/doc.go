// Package jwt reads identity claims out of backend-issued tokens and mints tokens for
// local tooling.
//
// [Decoder] never verifies signatures. The claims it returns are a client-side display
// hint only and must not be used as an authorization boundary; the backend re-validates
// every request.
package jwt
