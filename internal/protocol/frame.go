// Package protocol implements the server<->node framed wire codec: a
// length-prefixed binary envelope carrying a small tagged-union of control
// messages (Hello, BotConfiguration, BotError, Ping, Pong, MarketList).
//
// The framed TCP transport itself is an external collaborator (spec.md's
// own scope line), but the bit-exact frame and message layout is part of
// what Control encodes and decodes, so it lives in this package rather than
// being treated as an opaque black box.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CurrentVersion is the only frame version this node speaks.
const CurrentVersion = 1

// ErrUnknownVersion is returned by ReadFrame when the leading version byte
// does not match CurrentVersion. The caller has already consumed exactly
// one byte from the stream when this is returned, matching the wire law
// "decoding a different version returns a protocol error and advances one
// byte".
type ErrUnknownVersion struct {
	Got byte
}

func (e *ErrUnknownVersion) Error() string {
	return fmt.Sprintf("protocol: unknown frame version %d (want %d)", e.Got, CurrentVersion)
}

// WriteFrame writes version:u8 | length:u32 LE | payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	header := make([]byte, 5)
	header[0] = CurrentVersion
	binary.LittleEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("protocol: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r, returning its payload. On a version
// mismatch it returns *ErrUnknownVersion having consumed only the version
// byte, so the caller may resynchronize rather than losing the whole
// connection's byte alignment.
func ReadFrame(r io.Reader) ([]byte, error) {
	var versionByte [1]byte
	if _, err := io.ReadFull(r, versionByte[:]); err != nil {
		return nil, fmt.Errorf("protocol: read frame version: %w", err)
	}
	if versionByte[0] != CurrentVersion {
		return nil, &ErrUnknownVersion{Got: versionByte[0]}
	}

	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, fmt.Errorf("protocol: read frame length: %w", err)
	}
	length := binary.LittleEndian.Uint32(lenBytes[:])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("protocol: read frame payload: %w", err)
		}
	}
	return payload, nil
}

// EncodedFrameLen reports the total wire length of a frame carrying payload,
// i.e. len(payload) + 5 (the codec law exercised in frame_test.go).
func EncodedFrameLen(payload []byte) int {
	return len(payload) + 5
}
