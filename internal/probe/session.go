package probe

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// maxStreamID is the largest client-initiated stream identifier (31 bits).
const maxStreamID = 1<<31 - 1

// Event is one frame observed on the connection, reduced to what the reset
// probe cares about: which stream it belongs to. Connection-scoped frames
// (SETTINGS, PING, GOAWAY) carry stream id 0 and never match a request
// stream.
type Event struct {
	StreamID uint32
	Type     http2.FrameType
}

// session is the HTTP/2 protocol-state object for a single probe. It owns a
// framer and an hpack encoder, buffers outgoing frames until Flush, and
// parses incoming bytes fed through Receive. One session drives exactly one
// connection and is never shared.
type session struct {
	out  bytes.Buffer
	in   frameQueue
	fr   *http2.Framer
	henc *hpack.Encoder
	hbuf bytes.Buffer

	// highest client-initiated stream id opened so far; 0 before the first
	// request.
	lastStreamID uint32
}

func newSession() *session {
	s := &session{}
	s.fr = http2.NewFramer(&s.out, &s.in)
	s.henc = hpack.NewEncoder(&s.hbuf)
	return s
}

// SendPreface queues the client connection preface followed by an empty
// SETTINGS frame. It must run before any other frame is queued.
func (s *session) SendPreface() error {
	s.out.WriteString(http2.ClientPreface)
	return errors.Wrap(s.fr.WriteSettings(), "write settings")
}

// SendHeaders queues a GET request for path on the given stream, using the
// four request pseudo-headers. END_STREAM and END_HEADERS are set: the probe
// never sends a body or continuation.
func (s *session) SendHeaders(streamID uint32, authority, path string) error {
	s.hbuf.Reset()
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":authority", Value: authority},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: path},
	}
	for _, f := range fields {
		if err := s.henc.WriteField(f); err != nil {
			return errors.Wrapf(err, "hpack encode %s", f.Name)
		}
	}

	if streamID > s.lastStreamID {
		s.lastStreamID = streamID
	}
	err := s.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: s.hbuf.Bytes(),
		EndStream:     true,
		EndHeaders:    true,
	})
	return errors.Wrap(err, "write headers")
}

// Receive feeds raw connection bytes to the session and returns the frame
// events they complete. Partial frames are buffered across calls; a call
// that completes no frame returns an empty slice.
func (s *session) Receive(data []byte) ([]Event, error) {
	s.in.buf = append(s.in.buf, data...)
	var events []Event
	for s.in.hasFrame() {
		f, err := s.fr.ReadFrame()
		if err != nil {
			return events, errors.Wrap(err, "read frame")
		}
		events = append(events, Event{
			StreamID: f.Header().StreamID,
			Type:     f.Header().Type,
		})
	}
	return events, nil
}

// ResetStream queues a RST_STREAM with error code CANCEL, the code a client
// uses to abandon a request it no longer wants.
func (s *session) ResetStream(streamID uint32) error {
	return errors.Wrap(s.fr.WriteRSTStream(streamID, http2.ErrCodeCancel), "write rst_stream")
}

// NextStreamID returns the next client-initiated stream identifier the
// session could open, without claiming it. It returns 0 when the odd-numbered
// 31-bit space is exhausted.
func (s *session) NextStreamID() uint32 {
	if s.lastStreamID == 0 {
		return 1
	}
	next := s.lastStreamID + 2
	if next > maxStreamID {
		return 0
	}
	return next
}

// Flush writes all queued frames to w and empties the send buffer.
func (s *session) Flush(w io.Writer) error {
	if s.out.Len() == 0 {
		return nil
	}
	_, err := w.Write(s.out.Bytes())
	s.out.Reset()
	return errors.Wrap(err, "flush")
}

// frameQueue buffers received bytes for the framer. The framer only ever
// reads from it when hasFrame reports a complete frame, so a Read never
// splits mid-frame into io.EOF.
type frameQueue struct {
	buf []byte
}

func (q *frameQueue) Read(p []byte) (int, error) {
	if len(q.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n, nil
}

// hasFrame reports whether buf holds at least one complete frame: the 9-byte
// header plus the payload length it declares.
func (q *frameQueue) hasFrame() bool {
	if len(q.buf) < 9 {
		return false
	}
	payload := int(uint32(q.buf[0])<<16 | uint32(q.buf[1])<<8 | uint32(q.buf[2]))
	return len(q.buf) >= 9+payload
}
