// Package security holds credential redaction and the read-only guard for the local API.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys are field names whose values are never printed or logged in full.
var sensitiveKeys = map[string]bool{
	"password":   true,
	"secret":     true,
	"token":      true,
	"api_key":    true,
	"apikey":     true,
	"auth":       true,
	"credential": true,
}

// sensitiveParams matches key=value pairs in free text, such as query strings or DSNs.
var sensitiveParams = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key)=([^&\s]+)`)

// MaskSecret keeps the first and last two characters of long secrets and hides the rest.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

// RedactURL hides the password of userinfo and any sensitive query parameters in raw.
// Strings that do not parse as URLs are masked as free text.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return RedactText(raw)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if IsSensitiveKey(key) {
				q.Set(key, "xxxxx")
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RedactText masks key=value secrets embedded in s.
func RedactText(s string) string {
	return sensitiveParams.ReplaceAllString(s, "$1=xxxxx")
}

// IsSensitiveKey reports whether a field or parameter name carries a secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	return strings.HasSuffix(k, "_password") || strings.HasSuffix(k, "_token") || strings.HasSuffix(k, "_secret")
}

// Sanitize returns a copy of data with sensitive values masked and URLs redacted.
func Sanitize(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			if IsSensitiveKey(k) {
				out[k] = MaskSecret(val)
			} else {
				out[k] = RedactURL(val)
			}
		case map[string]interface{}:
			out[k] = Sanitize(val)
		default:
			if IsSensitiveKey(k) {
				out[k] = "****"
			} else {
				out[k] = v
			}
		}
	}
	return out
}
