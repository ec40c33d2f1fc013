package model

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultScheme is assumed for bare host:port entries found in source lists.
const DefaultScheme = "http"

// Relay is a confirmed relay endpoint. URL always carries an explicit
// scheme (http, https or socks5).
type Relay struct {
	URL       string        `json:"url"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

// SupportedScheme reports whether the tunnel client can route requests
// through a relay of the given scheme.
func SupportedScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "socks5":
		return true
	}
	return false
}

// Normalize turns one raw source-list line into a canonical relay endpoint
// URL. It returns false for blank lines, comments and anything unparseable.
// Normalizing an already-normalized value returns it unchanged.
func Normalize(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}

	if strings.Contains(line, "://") {
		u, err := url.Parse(line)
		if err != nil || !SupportedScheme(u.Scheme) || u.Host == "" {
			return "", false
		}
		return line, true
	}

	// Bare host:port entries assume the default scheme.
	host, port, err := net.SplitHostPort(line)
	if err != nil || host == "" {
		return "", false
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return "", false
	}
	return DefaultScheme + "://" + line, true
}
