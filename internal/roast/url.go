package roast

import (
	"net"
	"net/url"
	"strings"
)

const maxURLLength = 2048

// injectionKeywords are phrases that only appear in prompt-injection
// attempts, never in legitimate startup URLs or page copy.
var injectionKeywords = []string{
	"ignore previous",
	"ignore all",
	"disregard",
	"forget your",
	"new instructions",
	"system prompt",
	"you are now",
	"pretend to be",
	"act as",
	"roleplay",
	"jailbreak",
	"dan mode",
	"developer mode",
	"bypass",
	"override",
	"abaikan instruksi",
	"lupakan",
	"instruksi baru",
}

// ValidateURL checks that raw is an absolute HTTP(S) URL pointing at a
// public host and returns its normalized form. It rejects private,
// loopback and link-local hosts to prevent internal-network probing,
// and URLs that smell like prompt injection.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &InvalidInputError{URL: raw, Detail: "url is empty"}
	}
	if len(raw) > maxURLLength {
		return "", &InvalidInputError{URL: raw, Detail: "url too long"}
	}
	if ContainsInjection(raw) {
		return "", &InvalidInputError{URL: raw, Detail: "url contains disallowed content"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &InvalidInputError{URL: raw, Detail: "malformed url"}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &InvalidInputError{URL: raw, Detail: "only http and https are allowed"}
	}
	host := u.Hostname()
	if host == "" {
		return "", &InvalidInputError{URL: raw, Detail: "url has no host"}
	}
	if IsPrivateHost(host) {
		return "", &InvalidInputError{URL: raw, Detail: "private or local hosts are not allowed"}
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

// ContainsInjection reports whether the input matches a known
// prompt-injection phrase, case-insensitively.
func ContainsInjection(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range injectionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsPrivateHost reports whether the host is loopback, private,
// link-local or otherwise unreachable from the public internet. Names
// are judged without DNS resolution; literal IPs are judged by range.
func IsPrivateHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return true
	}
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") {
		// Bare single-label names only resolve on internal networks.
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
