package classifier

import (
	"net"
	"strings"
)

// UnknownIP is reported when no address can be determined.
const UnknownIP = "Unknown"

// ClientIPHeaders lists the headers consulted for the client address, highest
// priority first.
var ClientIPHeaders = []string{
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// ClientIPCandidates reads ClientIPHeaders in priority order.
func ClientIPCandidates(header func(name string) string) []string {
	candidates := make([]string, 0, len(ClientIPHeaders))
	for _, name := range ClientIPHeaders {
		candidates = append(candidates, header(name))
	}

	return candidates
}

// NormalizeClientIP picks the first non-empty candidate, falling back to the
// socket address. Forwarded chains contribute their first entry and IPv4-mapped
// IPv6 addresses lose their ::ffff: prefix.
func NormalizeClientIP(candidates []string, socketAddr string) string {
	for _, candidate := range candidates {
		if ip := firstEntry(candidate); ip != "" {
			return stripMappedPrefix(ip)
		}
	}

	if ip := hostOnly(socketAddr); ip != "" {
		return stripMappedPrefix(ip)
	}

	return UnknownIP
}

func firstEntry(value string) string {
	if idx := strings.Index(value, ","); idx != -1 {
		value = value[:idx]
	}

	return strings.TrimSpace(value)
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

func stripMappedPrefix(ip string) string {
	if len(ip) > len("::ffff:") && strings.EqualFold(ip[:len("::ffff:")], "::ffff:") {
		return ip[len("::ffff:"):]
	}

	return ip
}
