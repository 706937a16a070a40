// Package netinfo discovers the scanning host's source addresses for report
// metadata. Discovery runs once per scan; the result is passed around as an
// immutable value.
package netinfo

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcdannyboy/CVE-2023-44487/internal/probe"
)

// externalIPService answers a GET with the caller's public address.
// Variable so tests can point it at a local server.
var externalIPService = "http://ifconfig.me"

// SourceIPs holds the addresses stamped on every report row. Empty fields
// mean discovery failed; the scan proceeds regardless.
type SourceIPs struct {
	Internal string
	External string
}

// Discover resolves both source addresses. The external lookup goes through
// the configured proxy, if any, since that is the address targets will see.
func Discover(proxy probe.ProxyConfig, timeout time.Duration) SourceIPs {
	return SourceIPs{
		Internal: internalIP(),
		External: externalIP(proxy, timeout),
	}
}

// internalIP finds the local address the kernel would route outbound traffic
// from. The UDP "connect" sends nothing; it only selects a source address.
func internalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:53")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

func externalIP(proxy probe.ProxyConfig, timeout time.Duration) string {
	tr := &http.Transport{DisableKeepAlives: true}
	if proxy.HTTPProxy != "" {
		if u, err := url.Parse(proxy.HTTPProxy); err == nil {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{Transport: tr, Timeout: timeout}

	resp, err := client.Get(externalIPService)
	if err != nil {
		slog.Warn("external_ip_lookup_failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		slog.Warn("external_ip_lookup_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(string(body))
}
