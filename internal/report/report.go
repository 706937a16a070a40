// Package report maps probe outcomes onto the five-way scan verdict and
// writes the CSV the scanner emits.
package report

import (
	"encoding/csv"
	"io"
	"sync"
	"time"

	"github.com/bcdannyboy/CVE-2023-44487/internal/probe"
)

// Verdict is the per-target classification written to the report.
type Verdict string

const (
	// VerdictVulnerable: HTTP/2 confirmed and a RST_STREAM was delivered
	// against live stream activity.
	VerdictVulnerable Verdict = "VULNERABLE"
	// VerdictLikely: HTTP/2 confirmed but the reset signal was ambiguous
	// (peer closed early, or the degraded stream-1 path was taken).
	VerdictLikely Verdict = "LIKELY"
	// VerdictPossible: HTTP/2 confirmed but the reset exchange failed.
	VerdictPossible Verdict = "POSSIBLE"
	// VerdictSafe: the peer downgraded away from HTTP/2.
	VerdictSafe Verdict = "SAFE"
	// VerdictError: the target could not be probed at all.
	VerdictError Verdict = "ERROR"
)

// Classify folds a negotiation result and, when negotiation confirmed
// HTTP/2, a reset outcome into a verdict plus its detail string. The two
// ambiguous reset signals stay distinguishable through the detail text, so
// the mapping is lossless.
func Classify(neg probe.NegotiationResult, rst *probe.ResetOutcome) (Verdict, string) {
	switch neg.Kind {
	case probe.Downgraded:
		return VerdictSafe, "Downgraded to " + neg.Version
	case probe.NegotiationError:
		return VerdictError, neg.Err
	}

	if rst == nil {
		return VerdictError, "no reset probe result"
	}
	switch rst.Kind {
	case probe.ResetAccepted:
		if rst.Detail != "" {
			return VerdictLikely, rst.Detail
		}
		return VerdictVulnerable, ""
	case probe.NoResponse:
		return VerdictLikely, "Got empty response to RST_STREAM request"
	default:
		return VerdictPossible, "Failed to send RST_STREAM: " + rst.Detail
	}
}

// Row is one report line.
type Row struct {
	Timestamp  time.Time
	InternalIP string
	ExternalIP string
	URL        string
	Verdict    Verdict
	Detail     string
	Country    string
}

// Writer emits CSV rows. Safe for concurrent use by scan workers.
type Writer struct {
	mu          sync.Mutex
	cw          *csv.Writer
	withCountry bool
}

// NewWriter wraps w and writes the header row. withCountry appends the GeoIP
// enrichment column.
func NewWriter(w io.Writer, withCountry bool) (*Writer, error) {
	cw := csv.NewWriter(w)
	header := []string{"Timestamp", "Source Internal IP", "Source External IP", "URL", "Vulnerability Status", "Error/Downgrade Version"}
	if withCountry {
		header = append(header, "Country")
	}
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	cw.Flush()
	return &Writer{cw: cw, withCountry: withCountry}, nil
}

// Write appends one row and flushes, so a long scan leaves usable output
// even when interrupted.
func (w *Writer) Write(r Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := []string{
		r.Timestamp.Format("2006-01-02 15:04:05"),
		r.InternalIP,
		r.ExternalIP,
		r.URL,
		string(r.Verdict),
		r.Detail,
	}
	if w.withCountry {
		rec = append(rec, r.Country)
	}
	if err := w.cw.Write(rec); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}
