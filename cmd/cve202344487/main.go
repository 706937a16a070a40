// Command cve202344487 scans a list of HTTP servers for susceptibility to
// the HTTP/2 Rapid Reset technique and writes one CSV verdict per target.
//
// The per-target signal is a single request/reset exchange, a deliberately
// low-volume heuristic: it demonstrates that the server tolerates a stream
// reset mid-response, not that a full-rate attack would succeed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/bcdannyboy/CVE-2023-44487/internal/config"
	"github.com/bcdannyboy/CVE-2023-44487/internal/geo"
	"github.com/bcdannyboy/CVE-2023-44487/internal/logger"
	"github.com/bcdannyboy/CVE-2023-44487/internal/netinfo"
	"github.com/bcdannyboy/CVE-2023-44487/internal/probe"
	"github.com/bcdannyboy/CVE-2023-44487/internal/report"
	"github.com/bcdannyboy/CVE-2023-44487/internal/scan"
)

func main() {
	input := flag.String("i", "", "Path to a newline-delimited list of target URLs (required)")
	output := flag.String("o", "", "Path for the CSV report (default stdout)")
	proxyURL := flag.String("proxy", "", "HTTP/HTTPS proxy URL")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: cve202344487 -i <targets-file> [-o <report.csv>] [--proxy <url>] [-v]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	level := cfg.LogLevel
	if *verbose {
		level = "DEBUG"
	}
	logger.Setup(level)

	targets, err := readTargets(*input)
	if err != nil {
		slog.Error("input_read_failed", "path", *input, "error", err)
		os.Exit(1)
	}
	slog.Info("targets_loaded", "count", len(targets))

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			slog.Error("output_open_failed", "path", *output, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	proxy := probe.ProxyConfig{HTTPProxy: *proxyURL, HTTPSProxy: *proxyURL}

	ips := netinfo.Discover(proxy, cfg.IPTimeout)
	slog.Info("source_ips", "internal", ips.Internal, "external", ips.External)

	var db *geo.Database
	if cfg.GeoIPPath != "" {
		db, err = geo.Open(cfg.GeoIPPath)
		if err != nil {
			slog.Warn("geoip_unavailable", "path", cfg.GeoIPPath, "error", err)
		} else {
			defer db.Close()
		}
	}

	w, err := report.NewWriter(out, db != nil)
	if err != nil {
		slog.Error("report_init_failed", "error", err)
		os.Exit(1)
	}

	runner := &scan.Runner{
		Timeout:  cfg.ProbeTimeout,
		Workers:  cfg.Workers,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.ScanRate), 1),
		Proxy:    proxy,
		ProxyURL: *proxyURL,
		IPs:      ips,
		Geo:      db,
	}
	runner.Run(context.Background(), targets, w)

	slog.Info("scan_complete", "targets", len(targets))
}

func readTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			targets = append(targets, line)
		}
	}
	return targets, sc.Err()
}
