package proxy

import (
	"net/http"
	"strings"
)

// Credential sources, in the order the default resolver consults them.
const (
	CredentialField     = "api_key"
	AuthorizationHeader = "Authorization"
	APIKeyHeader        = "api-key"
	bearerPrefix        = "Bearer "
)

// CredentialSource extracts a credential candidate from a request. It may
// modify the payload.
type CredentialSource interface {
	Credential(p Payload, h http.Header) string
}

// CredentialSourceFunc adapts a function to CredentialSource.
type CredentialSourceFunc func(p Payload, h http.Header) string

// Credential calls f.
func (f CredentialSourceFunc) Credential(p Payload, h http.Header) string {
	return f(p, h)
}

// PayloadField takes the credential from a body field and always removes the
// field, so it is never forwarded to the backend. Non-string values are
// removed and ignored.
func PayloadField(key string) CredentialSource {
	return CredentialSourceFunc(func(p Payload, _ http.Header) string {
		v, ok := p[key]
		if !ok {
			return ""
		}
		delete(p, key)
		s, _ := v.(string)
		return s
	})
}

// Header takes the credential from a request header.
func Header(name string) CredentialSource {
	return CredentialSourceFunc(func(_ Payload, h http.Header) string {
		return h.Get(name)
	})
}

// CredentialResolver tries its sources in order; the first non-empty value
// wins. Every source is consulted, so removals done by a payload source
// happen even when an earlier source already produced a value.
type CredentialResolver struct {
	sources []CredentialSource
}

// NewCredentialResolver creates a resolver over sources.
func NewCredentialResolver(sources ...CredentialSource) *CredentialResolver {
	return &CredentialResolver{sources: sources}
}

// DefaultCredentialResolver consults the api_key body field, then the
// Authorization header, then the api-key header.
func DefaultCredentialResolver() *CredentialResolver {
	return NewCredentialResolver(
		PayloadField(CredentialField),
		Header(AuthorizationHeader),
		Header(APIKeyHeader),
	)
}

// Resolve returns the credential with any "Bearer " prefix stripped, or ""
// when the request carries none. A missing credential is not an error.
func (r *CredentialResolver) Resolve(p Payload, h http.Header) string {
	var credential string
	for _, source := range r.sources {
		if v := source.Credential(p, h); v != "" && credential == "" {
			credential = v
		}
	}
	return strings.TrimPrefix(credential, bearerPrefix)
}
