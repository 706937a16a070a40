package probe

import (
	"io"
	"log/slog"
	"time"
)

// readChunk bounds a single socket read in the frame loop.
const readChunk = 64 << 10

// degradedDetail marks the low-confidence success path where no stream id
// was available and the reset went to stream 1 regardless.
const degradedDetail = "able to send RST_STREAM to stream 1 but no stream id was otherwise available"

// Reset performs one raw HTTP/2 request/reset exchange against host:port and
// classifies the peer's reaction. It connects (optionally through proxyURL),
// sends the connection preface and a GET for path on streamID, then resets
// the stream the moment any frame proves it is live — the single-stream
// analogue of the Rapid Reset pattern.
//
// One invocation is one attempt: every failure maps to an outcome, nothing
// is retried, and the connection and session are released on every path. The
// whole exchange is bounded by timeout.
func Reset(host string, port int, streamID uint32, path string, timeout time.Duration, proxyURL string) ResetOutcome {
	conn, err := dialTarget(host, port, timeout, proxyURL)
	if err != nil {
		return ResetOutcome{Kind: ResetError, Detail: err.Error()}
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	sess := newSession()
	if err := sess.SendPreface(); err != nil {
		return ResetOutcome{Kind: ResetError, Detail: err.Error()}
	}
	if err := sess.SendHeaders(streamID, host, path); err != nil {
		return ResetOutcome{Kind: ResetError, Detail: err.Error()}
	}
	if err := sess.Flush(conn); err != nil {
		return ResetOutcome{Kind: ResetError, Detail: err.Error()}
	}

	buf := make([]byte, readChunk)
	for {
		n, err := conn.Read(buf)
		if n == 0 {
			if err == nil {
				continue
			}
			if err == io.EOF {
				// Peer closed before giving us anything to reset.
				return ResetOutcome{Kind: NoResponse}
			}
			return ResetOutcome{Kind: ResetError, Detail: err.Error()}
		}

		events, rerr := sess.Receive(buf[:n])
		for _, ev := range events {
			if ev.StreamID != streamID {
				continue
			}
			// The stream is live; reset it immediately. The write
			// succeeding is the success criterion, no acknowledgment
			// is awaited.
			slog.Debug("stream_activity", "host", host, "stream", ev.StreamID, "frame", ev.Type.String())
			if err := sess.ResetStream(streamID); err != nil {
				return ResetOutcome{Kind: ResetError, Detail: err.Error()}
			}
			if err := sess.Flush(conn); err != nil {
				return ResetOutcome{Kind: ResetError, Detail: err.Error()}
			}
			return ResetOutcome{Kind: ResetAccepted}
		}
		if rerr != nil {
			return ResetOutcome{Kind: ResetError, Detail: rerr.Error()}
		}

		// Nothing in this read touched our stream. Reset the next stream
		// id the session could open, or stream 1 with degraded confidence
		// when the id space gives us nothing.
		id := sess.NextStreamID()
		detail := ""
		if id == 0 {
			id = streamID
			detail = degradedDetail
		}
		if err := sess.ResetStream(id); err != nil {
			return ResetOutcome{Kind: ResetError, Detail: err.Error()}
		}
		if err := sess.Flush(conn); err != nil {
			return ResetOutcome{Kind: ResetError, Detail: err.Error()}
		}
		return ResetOutcome{Kind: ResetAccepted, Detail: detail}
	}
}
