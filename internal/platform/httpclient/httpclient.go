// Package httpclient carries the outgoing-request interceptor: it attaches
// the session credential to backend calls and turns a 401 into a
// session-expired signal. The session core only exposes the hook; this
// transport concern lives here.
package httpclient

import (
	"context"
	"net/http"
	"strings"

	"passage/internal/session/models"
)

// CredentialSource yields the current session snapshot.
type CredentialSource interface {
	Current() models.Snapshot
}

// Transport is an http.RoundTripper decorator.
type Transport struct {
	base           http.RoundTripper
	source         CredentialSource
	onUnauthorized func(ctx context.Context)
	skipPrefixes   []string
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase overrides the underlying RoundTripper.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithOnUnauthorized installs the 401 hook, typically Session.Expire.
func WithOnUnauthorized(fn func(ctx context.Context)) Option {
	return func(t *Transport) { t.onUnauthorized = fn }
}

// WithSkipPrefixes replaces the default unauthenticated path prefixes.
func WithSkipPrefixes(prefixes ...string) Option {
	return func(t *Transport) { t.skipPrefixes = prefixes }
}

// New builds a Transport. Login and registration endpoints are skipped by
// default: they carry no bearer token and their 401s mean bad credentials,
// not an expired session.
func New(source CredentialSource, opts ...Option) *Transport {
	t := &Transport{
		base:         http.DefaultTransport,
		source:       source,
		skipPrefixes: []string{"/auth/login", "/auth/register"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// RoundTrip attaches "Authorization: Bearer <credential>" except on skipped
// paths, and invokes the hook on a 401 response.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	skipped := t.skip(req.URL.Path)

	if !skipped {
		if snap := t.source.Current(); snap.Authenticated() {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+snap.Credential.AccessToken)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !skipped && t.onUnauthorized != nil {
		t.onUnauthorized(req.Context())
	}
	return resp, nil
}

func (t *Transport) skip(path string) bool {
	for _, prefix := range t.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
