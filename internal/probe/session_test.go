package probe

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func TestSessionPreface(t *testing.T) {
	sess := newSession()
	if err := sess.SendPreface(); err != nil {
		t.Fatalf("SendPreface: %v", err)
	}

	var wire bytes.Buffer
	if err := sess.Flush(&wire); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !strings.HasPrefix(wire.String(), http2.ClientPreface) {
		t.Fatalf("wire output does not start with the client preface: %q", wire.Bytes()[:24])
	}

	fr := http2.NewFramer(nil, bytes.NewReader(wire.Bytes()[len(http2.ClientPreface):]))
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("reading frame after preface: %v", err)
	}
	if _, ok := f.(*http2.SettingsFrame); !ok {
		t.Fatalf("frame after preface = %T, want *http2.SettingsFrame", f)
	}
}

func TestSessionSendHeaders(t *testing.T) {
	sess := newSession()
	if err := sess.SendHeaders(1, "example.com", "/probe"); err != nil {
		t.Fatalf("SendHeaders: %v", err)
	}

	var wire bytes.Buffer
	if err := sess.Flush(&wire); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fr := http2.NewFramer(nil, bytes.NewReader(wire.Bytes()))
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	hf, ok := f.(*http2.HeadersFrame)
	if !ok {
		t.Fatalf("frame = %T, want *http2.HeadersFrame", f)
	}
	if hf.StreamID != 1 {
		t.Errorf("StreamID = %d, want 1", hf.StreamID)
	}
	if !hf.StreamEnded() || !hf.HeadersEnded() {
		t.Error("expected END_STREAM and END_HEADERS to be set")
	}

	want := map[string]string{
		":method":    "GET",
		":authority": "example.com",
		":scheme":    "https",
		":path":      "/probe",
	}
	got := map[string]string{}
	dec := hpack.NewDecoder(4096, func(f hpack.HeaderField) {
		got[f.Name] = f.Value
	})
	if _, err := dec.Write(hf.HeaderBlockFragment()); err != nil {
		t.Fatalf("hpack decode: %v", err)
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("header %s = %q, want %q", name, got[name], value)
		}
	}
}

func TestSessionReceiveAcrossSplits(t *testing.T) {
	// Build three server frames, then feed them to the session cut at an
	// arbitrary mid-frame boundary.
	var wire bytes.Buffer
	fr := http2.NewFramer(&wire, nil)
	if err := fr.WriteSettings(); err != nil {
		t.Fatal(err)
	}
	if err := fr.WriteWindowUpdate(0, 1024); err != nil {
		t.Fatal(err)
	}
	if err := fr.WriteRSTStream(1, http2.ErrCodeRefusedStream); err != nil {
		t.Fatal(err)
	}
	raw := wire.Bytes()

	sess := newSession()
	cut := 9 + 2 // splits the second frame's payload

	events, err := sess.Receive(raw[:cut])
	if err != nil {
		t.Fatalf("Receive(first chunk): %v", err)
	}
	if len(events) != 1 || events[0].Type != http2.FrameSettings {
		t.Fatalf("first chunk events = %+v, want a single SETTINGS event", events)
	}

	events, err = sess.Receive(raw[cut:])
	if err != nil {
		t.Fatalf("Receive(second chunk): %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("second chunk yielded %d events, want 2", len(events))
	}
	if events[0].Type != http2.FrameWindowUpdate || events[0].StreamID != 0 {
		t.Errorf("event 0 = %+v, want WINDOW_UPDATE on stream 0", events[0])
	}
	if events[1].Type != http2.FrameRSTStream || events[1].StreamID != 1 {
		t.Errorf("event 1 = %+v, want RST_STREAM on stream 1", events[1])
	}
}

func TestSessionReceivePartialYieldsNothing(t *testing.T) {
	sess := newSession()
	events, err := sess.Receive([]byte{0x00, 0x00})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("partial header yielded %d events, want 0", len(events))
	}
}

func TestSessionResetStream(t *testing.T) {
	sess := newSession()
	if err := sess.ResetStream(1); err != nil {
		t.Fatalf("ResetStream: %v", err)
	}

	var wire bytes.Buffer
	if err := sess.Flush(&wire); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fr := http2.NewFramer(nil, bytes.NewReader(wire.Bytes()))
	f, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	rf, ok := f.(*http2.RSTStreamFrame)
	if !ok {
		t.Fatalf("frame = %T, want *http2.RSTStreamFrame", f)
	}
	if rf.StreamID != 1 {
		t.Errorf("StreamID = %d, want 1", rf.StreamID)
	}
	if rf.ErrCode != http2.ErrCodeCancel {
		t.Errorf("ErrCode = %v, want CANCEL", rf.ErrCode)
	}
}

func TestSessionNextStreamID(t *testing.T) {
	sess := newSession()
	if got := sess.NextStreamID(); got != 1 {
		t.Errorf("fresh session NextStreamID = %d, want 1", got)
	}

	if err := sess.SendHeaders(1, "example.com", "/"); err != nil {
		t.Fatal(err)
	}
	if got := sess.NextStreamID(); got != 3 {
		t.Errorf("after stream 1, NextStreamID = %d, want 3", got)
	}

	sess.lastStreamID = maxStreamID
	if got := sess.NextStreamID(); got != 0 {
		t.Errorf("exhausted id space NextStreamID = %d, want 0", got)
	}
}

func TestSessionFlushEmpty(t *testing.T) {
	sess := newSession()
	if err := sess.Flush(failingWriter{}); err != nil {
		t.Fatalf("Flush with nothing queued should not touch the writer: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteRefused
}

var errWriteRefused = errors.New("write refused")
