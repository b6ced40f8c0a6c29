package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame is a validated frame with its header and checksum removed.
type Frame struct {
	// PID1 is the packet group identifier
	PID1 byte

	// PID2 is the packet identifier within the group
	PID2 byte

	// Payload is the data between the length field and the checksum
	Payload []byte
}

// BuildFrame constructs a frame ready to send.
//
// Frame structure:
//
//	[SYNC1][SYNC2][PID1][PID2][LEN_H][LEN_L][PAYLOAD...][CHECKSUM_H][CHECKSUM_L]
//
// Length and checksum are big-endian. Payloads longer than MaxPayloadSize
// are rejected with ErrPayloadTooLarge.
func BuildFrame(pid1, pid2 byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, HeaderSize, MinFrameSize+len(payload))
	frame[0] = Sync1
	frame[1] = Sync2
	frame[2] = pid1
	frame[3] = pid2
	binary.BigEndian.PutUint16(frame[4:6], uint16(len(payload)))

	frame = append(frame, payload...)

	// Checksum covers everything before it, sync bytes included
	frame = binary.BigEndian.AppendUint16(frame, calculateChecksum(frame))

	return frame, nil
}

// ParseFrame validates a received frame and returns its identifiers and payload.
//
// The checksum over raw[:len-2] must equal the big-endian value of the last
// two bytes, otherwise a *ChecksumError (ErrChecksumMismatch) is returned.
// The returned payload aliases raw.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize {
		return nil, &ShortBufferError{What: "frame", Got: len(raw), Need: MinFrameSize}
	}

	body := raw[:len(raw)-ChecksumSize]
	expected := binary.BigEndian.Uint16(raw[len(raw)-ChecksumSize:])
	actual := calculateChecksum(body)
	if expected != actual {
		return nil, &ChecksumError{Expected: expected, Actual: actual}
	}

	payload := raw[HeaderSize : len(raw)-ChecksumSize]
	if declared := int(binary.BigEndian.Uint16(raw[4:6])); declared != len(payload) {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, frame carries %d",
			ErrFrameLength, declared, len(payload))
	}

	return &Frame{
		PID1:    raw[2],
		PID2:    raw[3],
		Payload: payload,
	}, nil
}

// IsAck reports whether the frame is an acknowledge packet.
func (f *Frame) IsAck() bool {
	return f.PID1 == RespAck
}

// AckCode returns the acknowledge code of an acknowledge packet.
func (f *Frame) AckCode() AckCode {
	return AckCode(f.PID2)
}

// AckErr returns an *AckError if the frame is a non-OK acknowledge, nil otherwise.
func (f *Frame) AckErr(operation string) error {
	if !f.IsAck() || f.AckCode().OK() {
		return nil
	}
	return &AckError{Operation: operation, Code: f.AckCode()}
}
