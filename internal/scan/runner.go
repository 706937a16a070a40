// Package scan orchestrates a run: it fans targets out to workers, gates the
// frame-level reset probe on a confirmed HTTP/2 negotiation, and hands rows
// to the report writer. Each probe owns its own connection and session, so
// workers share nothing but the read-only run configuration.
package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bcdannyboy/CVE-2023-44487/internal/geo"
	"github.com/bcdannyboy/CVE-2023-44487/internal/netinfo"
	"github.com/bcdannyboy/CVE-2023-44487/internal/probe"
	"github.com/bcdannyboy/CVE-2023-44487/internal/report"
	"github.com/bcdannyboy/CVE-2023-44487/internal/target"
)

// targetStreamID is the stream the reset probe requests and resets: the
// first client-initiated stream on a fresh connection.
const targetStreamID = 1

// Runner holds the immutable inputs of one scan.
type Runner struct {
	Timeout  time.Duration
	Workers  int
	Limiter  *rate.Limiter
	Proxy    probe.ProxyConfig
	ProxyURL string
	IPs      netinfo.SourceIPs
	Geo      *geo.Database
}

// Run probes every target and writes one row each. Probing of a single
// target is fully sequential; parallelism exists only across targets, capped
// by Workers and throttled by Limiter.
func (r *Runner) Run(ctx context.Context, targets []string, w *report.Writer) {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, raw := range targets {
		if raw == "" {
			continue
		}
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()
			defer func() { <-sem }()

			row := r.probeOne(raw)
			if err := w.Write(row); err != nil {
				slog.Error("report_write_failed", "target", raw, "error", err)
			}
		}(raw)
	}
	wg.Wait()
}

// probeOne runs the full pipeline for a single target: resolve, negotiate,
// and — only when HTTP/2 is confirmed — the frame-level reset exchange.
func (r *Runner) probeOne(raw string) report.Row {
	row := report.Row{
		Timestamp:  time.Now(),
		InternalIP: r.IPs.Internal,
		ExternalIP: r.IPs.External,
		URL:        raw,
	}

	t := target.Resolve(raw)
	if !t.Valid() {
		row.Verdict = report.VerdictError
		row.Detail = "invalid target"
		return row
	}
	row.Country = r.Geo.Country(t.Host)

	slog.Info("checking", "target", raw, "host", t.Host)

	neg, port := r.negotiate(raw, t)

	var rst *probe.ResetOutcome
	if neg.Kind == probe.Http2Confirmed {
		out := probe.Reset(t.Host, port, targetStreamID, t.Path, r.Timeout, r.ProxyURL)
		rst = &out
	}

	row.Verdict, row.Detail = report.Classify(neg, rst)
	slog.Debug("probe_complete", "target", raw, "verdict", string(row.Verdict), "detail", row.Detail)
	return row
}

// negotiate picks the endpoint for an ambiguous (scheme-less) target: the
// TLS port is tried first and the plaintext port only if that negotiation
// fails outright. Each endpoint gets exactly one attempt. The returned port
// is the one the reset probe should use.
func (r *Runner) negotiate(raw string, t target.Target) (probe.NegotiationResult, int) {
	if !t.Ambiguous() {
		return probe.Negotiate(raw, r.Proxy, r.Timeout), t.Port
	}

	neg := probe.Negotiate("https://"+raw, r.Proxy, r.Timeout)
	if neg.Kind != probe.NegotiationError {
		return neg, t.Port
	}
	return probe.Negotiate("http://"+raw, r.Proxy, r.Timeout), t.AltPort
}
