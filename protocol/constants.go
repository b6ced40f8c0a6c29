package protocol

// Frame structure constants for the DP5 family packet format.
const (
	// Sync1 is the first synchronisation byte of every frame (0xF5)
	Sync1 = 0xF5

	// Sync2 is the second synchronisation byte of every frame (0xFA)
	Sync2 = 0xFA

	// HeaderSize is SYNC1(1) + SYNC2(1) + PID1(1) + PID2(1) + LEN(2)
	HeaderSize = 6

	// ChecksumSize is the size of the trailing checksum field
	ChecksumSize = 2

	// MinFrameSize is the size of a frame with an empty payload
	MinFrameSize = HeaderSize + ChecksumSize

	// MaxPayloadSize is the largest payload the 16-bit length field can describe
	MaxPayloadSize = 0xFFFF
)

// Request packet identifiers (host to device).
const (
	// PIDStatus1 and PIDStatus2 request a status packet
	PIDStatus1 = 0x01
	PIDStatus2 = 0x01

	// PIDSpectrum1 requests spectrum data. PID2 is built by SpectrumPID2.
	PIDSpectrum1 = 0x02

	// PIDConfig1 selects the text configuration group
	PIDConfig1 = 0x20

	// PIDConfigText sends a text configuration command
	PIDConfigText = 0x02

	// PIDConfigReadback requests a text configuration readback
	PIDConfigReadback = 0x03

	// PIDControl1 selects the control group
	PIDControl1 = 0xF0

	// PIDEnableMCA starts MCA/MCS acquisition
	PIDEnableMCA = 0x02

	// PIDDisableMCA stops MCA/MCS acquisition
	PIDDisableMCA = 0x03
)

// Response packet identifiers (device to host).
const (
	// RespStatus1 is the PID1 of a status response
	RespStatus1 = 0x80

	// RespStatus2 is the PID2 of a status response
	RespStatus2 = 0x01

	// RespSpectrum1 is the PID1 of a spectrum response; PID2 carries the size code
	RespSpectrum1 = 0x81

	// RespConfig1 is the PID1 of a text configuration readback
	RespConfig1 = 0x82

	// RespConfigReadback is the PID2 of a text configuration readback
	RespConfigReadback = 0x07

	// RespAck is the PID1 of an acknowledge packet; PID2 carries the AckCode
	RespAck = 0xFF
)

// Payload layout constants.
const (
	// MinStatusSize is the number of status bytes the decoder reads
	MinStatusSize = 50

	// StatusBlockSize is the size of the status block sent by the device
	StatusBlockSize = 64

	// BytesPerChannel is the packed size of one spectrum channel
	BytesPerChannel = 3

	// MaxChannelValue is the largest count a 3-byte channel can hold
	MaxChannelValue = 0xFFFFFF
)

// SpectrumPID2 returns the request PID2 for a spectrum request.
func SpectrumPID2(includeStatus, clear bool) byte {
	pid2 := byte(0x01)
	if includeStatus {
		pid2 += 2
	}
	if clear {
		pid2++
	}
	return pid2
}
