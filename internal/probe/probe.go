// Package probe implements the two network probes behind the scanner: an
// ALPN-level check that a target actually negotiates HTTP/2, and a raw
// frame-level exchange that sends a request and resets the stream the moment
// it shows signs of life.
package probe

import "net/url"

// ProxyConfig carries the optional forward proxies for a run. It is read-only
// shared input; both probes take it by value.
type ProxyConfig struct {
	HTTPProxy  string
	HTTPSProxy string
}

// Enabled reports whether any proxy is configured.
func (p ProxyConfig) Enabled() bool {
	return p.HTTPProxy != "" || p.HTTPSProxy != ""
}

// proxyFunc adapts the config to http.Transport's Proxy hook. A nil return
// means direct connections.
func (p ProxyConfig) proxyFunc() func(scheme string) (*url.URL, error) {
	if !p.Enabled() {
		return nil
	}
	return func(scheme string) (*url.URL, error) {
		raw := p.HTTPProxy
		if scheme == "https" {
			raw = p.HTTPSProxy
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

// NegotiationKind discriminates NegotiationResult.
type NegotiationKind int

const (
	// Http2Confirmed means the peer negotiated HTTP/2 for a plain GET.
	Http2Confirmed NegotiationKind = iota
	// Downgraded means the request succeeded over some other protocol
	// version, recorded in Version.
	Downgraded
	// NegotiationError means the request never completed; Err holds the
	// transport failure.
	NegotiationError
)

// NegotiationResult is the outcome of the HTTP/2 support check. Exactly one
// variant applies; Version is set only for Downgraded and Err only for
// NegotiationError.
type NegotiationResult struct {
	Kind    NegotiationKind
	Version string
	Err     string
}

// ResetKind discriminates ResetOutcome.
type ResetKind int

const (
	// ResetAccepted means a RST_STREAM frame was built and written to the
	// peer. A non-empty Detail marks the degraded path where the frame went
	// to stream 1 without an available stream id.
	ResetAccepted ResetKind = iota
	// NoResponse means the peer closed the connection before any reset
	// could be sent.
	NoResponse
	// ResetError covers every transport or protocol failure during the
	// exchange; Detail preserves the error text.
	ResetError
)

// ResetOutcome is the outcome of one frame-level reset probe. Constructed
// once per target and immutable afterwards.
type ResetOutcome struct {
	Kind   ResetKind
	Detail string
}
