package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
)

// forwardedHeaders are consulted in order once the peer is trusted.
// CF-Connecting-IP comes first because the public site sits behind
// Cloudflare.
var forwardedHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

// TrustedProxies makes c.RealIP() honor forwarding headers only when the
// direct peer matches one of proxies. Entries may be CIDRs or bare IPs.
func TrustedProxies(e *echo.Echo, proxies []string) {
	e.IPExtractor = buildIPExtractor(proxies)
}

func buildIPExtractor(proxies []string) echo.IPExtractor {
	trusted := parsePrefixes(proxies)

	return func(req *http.Request) string {
		peer := peerAddr(req.RemoteAddr)
		if !peer.IsValid() || !containsAddr(trusted, peer) {
			return hostOnly(req.RemoteAddr)
		}
		for _, h := range forwardedHeaders {
			v := req.Header.Get(h)
			if v == "" {
				continue
			}
			// The leftmost X-Forwarded-For hop is the original client.
			first, _, _ := strings.Cut(v, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		return peer.String()
	}
}

func parsePrefixes(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("ignoring invalid trusted proxy", slog.String("entry", entry))
	}
	return out
}

func containsAddr(prefixes []netip.Prefix, a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func peerAddr(remoteAddr string) netip.Addr {
	a, err := netip.ParseAddr(hostOnly(remoteAddr))
	if err != nil {
		return netip.Addr{}
	}
	return a
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
