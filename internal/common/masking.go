package common

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Masked replaces redacted values.
const Masked = "***MASKED***"

var defaultSensitiveKeys = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"api_key",
	"apikey",
	"token",
	"access_token",
	"refresh_token",
	"password",
	"secret",
	"client_secret",
}

type valuePattern struct {
	re   *regexp.Regexp
	repl string
}

var defaultValuePatterns = []valuePattern{
	{regexp.MustCompile(`(?i)\b(bearer|basic|digest)\s+[A-Za-z0-9\-._~+/]+=*`), "${1} " + Masked},
	{regexp.MustCompile(`(?i)\b((?:password|passwd|secret|api[_-]?key|token)["']?\s*[:=]\s*["']?)[^"'&,}\s]+`), "${1}" + Masked},
}

// Masker redacts credentials from log attributes, header maps and urls.
type Masker struct {
	keys     map[string]struct{}
	patterns []valuePattern
}

// NewMasker returns a masker with the default key list and value patterns.
func NewMasker(extraKeys ...string) *Masker {
	m := &Masker{keys: map[string]struct{}{}, patterns: defaultValuePatterns}
	for _, k := range append(append([]string(nil), defaultSensitiveKeys...), extraKeys...) {
		m.keys[strings.ToLower(k)] = struct{}{}
	}
	return m
}

// IsSensitive reports whether a header, query or attribute key holds a secret.
func (m *Masker) IsSensitive(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.keys[strings.ToLower(key)]
	return ok
}

// MaskString redacts credentials embedded in free text.
func (m *Masker) MaskString(s string) string {
	if m == nil {
		return s
	}
	for _, p := range m.patterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// MaskHeaders returns a copy of headers with sensitive values replaced.
func (m *Masker) MaskHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if m.IsSensitive(k) {
			out[k] = Masked
			continue
		}
		out[k] = v
	}
	return out
}

// MaskURL redacts userinfo passwords and sensitive query parameters.
func (m *Masker) MaskURL(raw string) string {
	if m == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), Masked)
			changed = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		masked := false
		for k := range q {
			if m.IsSensitive(k) {
				q.Set(k, Masked)
				masked = true
			}
		}
		if masked {
			u.RawQuery = strings.ReplaceAll(q.Encode(), url.QueryEscape(Masked), Masked)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (m *Masker) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if m == nil {
		return a
	}
	if m.IsSensitive(a.Key) {
		return slog.String(a.Key, Masked)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if a.Key == "url" {
			return slog.String(a.Key, m.MaskURL(v))
		}
		return slog.String(a.Key, m.MaskString(v))
	case slog.KindAny:
		if h, ok := a.Value.Any().(map[string]string); ok {
			return slog.Any(a.Key, m.MaskHeaders(h))
		}
	}
	return a
}
