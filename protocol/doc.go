// Package protocol implements the Amptek DP5 family packet protocol as used by
// the MCA8000D multichannel analyzer.
//
// This package builds request frames, validates response frames and decodes
// the status, spectrum and text configuration payloads they carry. It does no
// I/O; see package mca for the request/response session.
//
// # Protocol Overview
//
// Every request and response uses the same frame:
//
//	[SYNC1][SYNC2][PID1][PID2][LEN_H][LEN_L][PAYLOAD...][CHECKSUM_H][CHECKSUM_L]
//
// Where:
//   - SYNC1 = 0xF5, SYNC2 = 0xFA
//   - PID1/PID2 identify the request or response
//   - LEN = 16-bit payload length (big-endian)
//   - CHECKSUM = 2's complement of the 16-bit byte sum of everything before it (big-endian)
//
// # Frames
//
//	frame, err := protocol.BuildFrame(protocol.PIDStatus1, protocol.PIDStatus2, nil)
//	resp, err := protocol.ParseFrame(raw)
//	if errors.Is(err, protocol.ErrChecksumMismatch) {
//	    // corrupt frame, caller may retry
//	}
//
// # Payload Decoders
//
//	status, err := protocol.DecodeStatus(resp.Payload)
//	spectrum, status, err := protocol.DecodeSpectrum(resp.Payload, resp.PID2, true)
//	cfg := protocol.ParseConfigResponse(string(resp.Payload))
//
// Status and spectrum fields are little-endian, unlike the frame header.
//
// # Text Configuration
//
// Configuration travels as ASCII "CODE=VALUE;" commands:
//
//	protocol.BuildQueryString()                               // "RESC=?;PURE=?;..."
//	protocol.BuildSetCommand(protocol.ConfigMap{"PRER": "20"}) // "PRER=20;"
//	protocol.PresetTimeCommand(0)                             // "PRER=OFF;"
//
// # Error Handling
//
// Failures are reported with sentinel errors usable with errors.Is:
//   - ErrChecksumMismatch (*ChecksumError)
//   - ErrBufferTooShort (*ShortBufferError)
//   - ErrUnknownSizeCode
//   - ErrInvalidArgument
//   - ErrPayloadTooLarge
//   - ErrFrameLength
//
// Acknowledge packets (PID1 0xFF) are returned as frames; Frame.AckErr turns a
// non-OK acknowledge into an *AckError.
package protocol
