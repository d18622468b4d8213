package shortener

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("invalid destination url")
	ErrInvalidCode = errors.New("invalid short code")
)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
}

// Paths served by the router itself; a custom code may not shadow them.
var reservedCodes = map[Code]bool{
	"api":         true,
	"health":      true,
	"metrics":     true,
	"favicon.ico": true,
	"robots.txt":  true,
}

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// NormalizeDestination validates that rawURL is an absolute http, https or ftp
// URL and returns it in canonical form.
// - Lowercases the scheme and host
// - Removes default ports (80 for http, 443 for https, 21 for ftp)
// Path, query and fragment are preserved as given.
func NormalizeDestination(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.ContainsAny(rawURL, " \"") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if !allowedSchemes[u.Scheme] {
		return "", fmt.Errorf("%w: scheme must be http, https or ftp", ErrInvalidURL)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	case u.Scheme == "ftp" && strings.HasSuffix(u.Host, ":21"):
		u.Host = strings.TrimSuffix(u.Host, ":21")
	}

	return u.String(), nil
}

// ValidateCustomCode checks a caller-supplied short code.
func ValidateCustomCode(code Code) error {
	if !customCodePattern.MatchString(string(code)) {
		return fmt.Errorf("%w: must be 3-32 characters of letters, digits, '-' or '_'", ErrInvalidCode)
	}

	if reservedCodes[Code(strings.ToLower(string(code)))] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCode, code)
	}

	return nil
}
