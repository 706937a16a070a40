package probe

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Negotiate issues a single GET against rawURL and reports whether the peer
// settled on HTTP/2. Certificate validation is off: scan targets routinely
// present self-signed or mismatched certificates and a verification failure
// would hide the answer we came for.
//
// One attempt is authoritative. A transport failure of any kind (DNS, TLS,
// refusal, timeout) is returned as NegotiationError, never retried.
func Negotiate(rawURL string, proxy ProxyConfig, timeout time.Duration) NegotiationResult {
	tr := &http.Transport{
		ForceAttemptHTTP2: true,
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
		DisableKeepAlives: true,
	}
	if pf := proxy.proxyFunc(); pf != nil {
		tr.Proxy = func(req *http.Request) (*url.URL, error) {
			return pf(req.URL.Scheme)
		}
	}

	client := &http.Client{Transport: tr, Timeout: timeout}
	defer tr.CloseIdleConnections()

	resp, err := client.Get(rawURL)
	if err != nil {
		return NegotiationResult{Kind: NegotiationError, Err: errors.Wrap(err, "http2 support check").Error()}
	}
	defer resp.Body.Close()

	slog.Debug("negotiation_complete", "url", rawURL, "proto", resp.Proto)

	if resp.ProtoMajor == 2 {
		return NegotiationResult{Kind: Http2Confirmed}
	}
	return NegotiationResult{Kind: Downgraded, Version: resp.Proto}
}
