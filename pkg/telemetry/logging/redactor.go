package logging

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"mercator-hq/chatproxy/pkg/config"
)

// Redacted replaces sensitive values in logs.
const Redacted = "[REDACTED]"

// Redactor masks credentials, and optionally PII, in log output.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternEmail       = "email"
)

// credentialPatterns are always applied. Order matters: bearer tokens are
// masked before bare sk- keys so a "Bearer sk-..." value keeps its scheme.
var credentialPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `(?i)\bbearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer " + Redacted},
	{PatternAPIKey, `\bsk-[a-zA-Z0-9_\-]{6,}`, "sk-" + Redacted},
	{PatternPassword, `(?i)\b(password|passwd|pwd)([:=]\s*)[^\s&]+`, "$1$2" + Redacted},
}

var piiPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternEmail, `[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, Redacted + "@$1"},
}

// sensitiveKeys are attribute, header and payload keys whose values are
// masked entirely. Keys are compared lower-cased with dashes as underscores.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy_authorization": true,
	"api_key":             true,
	"apikey":              true,
	"x_api_key":           true,
	"token":               true,
	"access_token":        true,
	"refresh_token":       true,
	"secret":              true,
	"client_secret":       true,
	"password":            true,
	"credential":          true,
	"cookie":              true,
	"set_cookie":          true,
}

// NewRedactor creates a Redactor. Credential patterns are always active;
// pii adds email masking and the custom patterns. Custom patterns that do
// not compile are skipped, config validation reports them.
func NewRedactor(pii bool, customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}

	for _, p := range credentialPatterns {
		r.add(p.name, regexp.MustCompile(p.regex), p.replacement)
	}

	if !pii {
		return r
	}

	for _, p := range piiPatterns {
		r.add(p.name, regexp.MustCompile(p.regex), p.replacement)
	}
	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.add(p.Name, regex, p.Replacement)
	}

	return r
}

func (r *Redactor) add(name string, regex *regexp.Regexp, replacement string) {
	r.patterns = append(r.patterns, &redactPattern{name: name, regex: regex, replacement: replacement})
}

// RedactString masks every pattern match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	for _, pattern := range r.patterns {
		value = pattern.regex.ReplaceAllString(value, pattern.replacement)
	}

	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Values of sensitive
// keys are replaced entirely; other strings and errors are pattern-masked.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, Redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if redacted := r.RedactString(a.Value.String()); redacted != a.Value.String() {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}

	return a
}

// RedactHeaders returns a loggable copy of h. Authorization values keep
// their scheme ("Bearer [REDACTED]"); other sensitive headers are masked
// entirely. Multiple values are joined with ", ".
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))

	for name, values := range h {
		switch {
		case strings.EqualFold(name, "Authorization"), strings.EqualFold(name, "Proxy-Authorization"):
			out[name] = redactAuthorization(strings.Join(values, ", "))
		case IsSensitiveKey(name):
			out[name] = Redacted
		default:
			out[name] = strings.Join(values, ", ")
		}
	}

	return out
}

// RedactFields returns a shallow copy of fields with the values of sensitive
// top-level keys masked. Empty values are left as they are.
func RedactFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))

	for k, v := range fields {
		if IsSensitiveKey(k) {
			if s, ok := v.(string); ok && s == "" {
				out[k] = v
				continue
			}
			out[k] = Redacted
			continue
		}
		out[k] = v
	}

	return out
}

// IsSensitiveKey reports whether values stored under key must never be
// logged.
func IsSensitiveKey(key string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(key), "-", "_")
	return sensitiveKeys[normalized]
}

func redactAuthorization(value string) string {
	if value == "" {
		return value
	}
	if scheme, _, ok := strings.Cut(value, " "); ok {
		return scheme + " " + Redacted
	}
	return Redacted
}
