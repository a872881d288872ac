package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"tag":4,"ping":{"nanos":123}}`)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	encoded := buf.Bytes()
	if encoded[0] != 1 {
		t.Fatalf("first byte = %d, want 1", encoded[0])
	}
	if len(encoded) != EncodedFrameLen(payload) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), EncodedFrameLen(payload))
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped payload = %q, want %q", got, payload)
	}
}

func TestReadFrameUnknownVersion(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer([]byte{7, 0, 0, 0, 0})
	_, err := ReadFrame(buf)

	var verErr *ErrUnknownVersion
	if !errors.As(err, &verErr) {
		t.Fatalf("err = %v, want *ErrUnknownVersion", err)
	}
	if verErr.Got != 7 {
		t.Fatalf("Got = %d, want 7", verErr.Got)
	}
	// Exactly one byte (the version) must have been consumed, leaving the
	// 4-byte length field still in the stream.
	if buf.Len() != 4 {
		t.Fatalf("remaining buffer = %d bytes, want 4", buf.Len())
	}
}

func TestEncodedFrameLen(t *testing.T) {
	t.Parallel()
	payload := []byte("abc")
	if got := EncodedFrameLen(payload); got != len(payload)+5 {
		t.Fatalf("EncodedFrameLen = %d, want %d", got, len(payload)+5)
	}
}
