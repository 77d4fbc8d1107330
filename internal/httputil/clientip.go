// Package httputil holds request and response helpers shared by the HTTP
// handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyHeaders are read in order when the proxy is trusted.
var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientIP returns the address stream limits and request logs key on.
// With trustProxy set the first proxy header holding a valid address wins;
// otherwise, or when none does, the connection's RemoteAddr is used.
// IPv4-mapped IPv6 addresses are reported in their IPv4 form so one client
// is never counted under two keys.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyHeaders {
			if ip, ok := headerIP(r.Header.Get(h)); ok {
				return ip
			}
		}
	}
	return remoteHost(r.RemoteAddr)
}

// headerIP parses the leftmost entry of a comma-separated header; later
// X-Forwarded-For entries are proxies, not the client.
func headerIP(v string) (string, bool) {
	first, _, _ := strings.Cut(v, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

func remoteHost(remoteAddr string) string {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
