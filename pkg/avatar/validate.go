// Package avatar implements the local avatar asset pipeline: validating
// remote image URLs, downloading them, normalizing to the standard avatar
// format, and caching thumbnails for display.
package avatar

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// trustedHosts is the fixed allow-list of image sources. localhost entries
// exist for development.
var trustedHosts = map[string]struct{}{
	"cdn.pluralkit.me":           {},
	"media.discordapp.net":       {},
	"cdn.discordapp.com":         {},
	"i.imgur.com":                {},
	"avatars.githubusercontent.com": {},
	"localhost":                  {},
	"127.0.0.1":                  {},
}

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// IsRemote reports whether an avatar reference is a URL still pending
// download rather than a resolved local path.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// ValidateURL checks an avatar URL against the security policy before any
// network call: https only (plain http tolerated for localhost), host on the
// trusted allow-list, and an image file extension.
func ValidateURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		slog.Warn("rejected unparseable avatar URL", "url", raw, "error", err)
		return false
	}

	host := parsed.Hostname()
	if parsed.Scheme != "https" && host != "localhost" && host != "127.0.0.1" {
		slog.Warn("rejected non-HTTPS avatar URL", "url", raw)
		return false
	}
	if _, ok := trustedHosts[host]; !ok {
		slog.Warn("rejected untrusted avatar host", "host", host)
		return false
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	slog.Warn("rejected avatar URL with invalid file type", "path", parsed.Path)
	return false
}

// SanitizeID reduces a member identifier to a path-safe filename fragment.
// Anything outside [A-Za-z0-9_-] becomes an underscore, the result is capped
// at 50 characters, and an empty result falls back to "unknown".
func SanitizeID(memberID string) string {
	safe := unsafeFilenameChars.ReplaceAllString(memberID, "_")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	if safe == "" {
		return "unknown"
	}
	return safe
}
