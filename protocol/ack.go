package protocol

import "fmt"

// AckCode is the PID2 of an acknowledge packet.
type AckCode byte

// Acknowledge codes.
const (
	AckOK               AckCode = 0x00
	AckSyncError        AckCode = 0x01
	AckPIDError         AckCode = 0x02
	AckLengthError      AckCode = 0x03
	AckChecksumError    AckCode = 0x04
	AckBadParameter     AckCode = 0x05
	AckBadHexRecord     AckCode = 0x06
	AckUnrecognized     AckCode = 0x07
	AckFPGAError        AckCode = 0x08
	AckCP2201NotFound   AckCode = 0x09
	AckScopeNotAvail    AckCode = 0x0A
	AckPC5NotPresent    AckCode = 0x0B
	AckOKSharingRequest AckCode = 0x0C
	AckBusy             AckCode = 0x0D
	AckI2CError         AckCode = 0x0E
)

// OK reports whether the acknowledge signals success.
func (c AckCode) OK() bool {
	return c == AckOK || c == AckOKSharingRequest
}

func (c AckCode) String() string {
	switch c {
	case AckOK:
		return "ok"
	case AckSyncError:
		return "sync error"
	case AckPIDError:
		return "pid error"
	case AckLengthError:
		return "length error"
	case AckChecksumError:
		return "checksum error"
	case AckBadParameter:
		return "bad parameter"
	case AckBadHexRecord:
		return "bad hex record"
	case AckUnrecognized:
		return "unrecognized command"
	case AckFPGAError:
		return "fpga error"
	case AckCP2201NotFound:
		return "cp2201 not found"
	case AckScopeNotAvail:
		return "scope data not available"
	case AckPC5NotPresent:
		return "pc5 not present"
	case AckOKSharingRequest:
		return "ok, interface sharing request"
	case AckBusy:
		return "busy"
	case AckI2CError:
		return "i2c error"
	default:
		return fmt.Sprintf("unknown ack code 0x%02X", byte(c))
	}
}
