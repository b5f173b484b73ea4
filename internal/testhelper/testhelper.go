// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package testhelper provides shared helpers for package tests.
package testhelper

import (
	"net/http"
)

// MockRoundTripper is a http.RoundTripper that delegates to a caller-provided function.
type MockRoundTripper struct {
	Fn func(req *http.Request) (*http.Response, error)
}

// RoundTrip implements the http.RoundTripper interface.
func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}
