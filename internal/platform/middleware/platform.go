package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type clientPlatformKey struct{}

// ClientPlatform records which platform the caller runs on, parsed from its
// User-Agent, e.g. "Android 14 (mobile)" or "linux (desktop)".
func ClientPlatform(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform := ParsePlatform(r.Header.Get("User-Agent"))
		ctx := context.WithValue(r.Context(), clientPlatformKey{}, platform)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientPlatform retrieves the platform stored by ClientPlatform.
func GetClientPlatform(ctx context.Context) string {
	if p, ok := ctx.Value(clientPlatformKey{}).(string); ok {
		return p
	}
	return ""
}

// ParsePlatform extracts a short platform description from a User-Agent.
func ParsePlatform(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)

	os := strings.TrimSpace(ua.OS())
	if os == "" {
		os = strings.TrimSpace(ua.Platform())
	}
	if os == "" {
		name, _ := ua.Browser()
		os = strings.TrimSpace(name)
	}
	if os == "" {
		os = "unknown"
	}

	kind := "desktop"
	if ua.Mobile() {
		kind = "mobile"
	}
	if ua.Bot() {
		kind = "bot"
	}
	return os + " (" + kind + ")"
}
