package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// DeviceType identifies the DP5 family member reporting a status.
type DeviceType byte

// Device types reported in status byte 39.
const (
	DeviceDP5      DeviceType = 0
	DevicePX5      DeviceType = 1
	DeviceDP5G     DeviceType = 2
	DeviceMCA8000D DeviceType = 3
	DeviceTB5      DeviceType = 4
	DeviceDP5X     DeviceType = 5
)

func (d DeviceType) String() string {
	switch d {
	case DeviceDP5:
		return "DP5"
	case DevicePX5:
		return "PX5"
	case DeviceDP5G:
		return "DP5G"
	case DeviceMCA8000D:
		return "MCA8000D"
	case DeviceTB5:
		return "TB5"
	case DeviceDP5X:
		return "DP5-X"
	default:
		return fmt.Sprintf("unknown device 0x%02X", byte(d))
	}
}

// NoSerialNumber is the SerialNumber of a device that reports none.
const NoSerialNumber = -1

// Status is a decoded device status block. Times are in milliseconds.
type Status struct {
	FastCount uint32 `json:"fastCount"`
	SlowCount uint32 `json:"slowCount"`
	GPCounter uint32 `json:"gpCounter"`

	AccumulationTime uint32 `json:"accumulationTime"`
	RealTime         uint32 `json:"realTime"`

	// LiveTime is zero unless DMCALiveTime is set
	LiveTime uint32 `json:"liveTime"`

	Firmware byte       `json:"firmware"`
	FPGA     byte       `json:"fpga"`
	Build    byte       `json:"build"`
	DeviceID DeviceType `json:"deviceId"`

	// SerialNumber is NoSerialNumber when the device does not report one
	SerialNumber int64 `json:"serialNumber"`

	DMCALiveTime bool `json:"dmcaLiveTime"`

	PresetRealTimeDone bool `json:"presetRealTimeDone"`
	PresetLiveTimeDone bool `json:"presetLiveTimeDone"`
	AFastLocked        bool `json:"afastLocked"`
	MCAEnabled         bool `json:"mcaEnabled"`
	PresetCountReached bool `json:"presetCountReached"`
	ScopeDataReady     bool `json:"scopeDataReady"`
	DP5Configured      bool `json:"dp5Configured"`

	AOffsetLocked bool `json:"aoffsetLocked"`
	MCSDone       bool `json:"mcsDone"`
	Clock80MHz    bool `json:"clock80MHz"`
	FPGAAutoClock bool `json:"fpgaAutoClock"`

	PC5Present    bool `json:"pc5Present"`
	PC5HVPositive bool `json:"pc5HvPositive"`
	PC5Supply8_5V bool `json:"pc5Supply8_5V"`

	DPPECO byte `json:"dppEco"`
}

// Status byte offsets.
const (
	offFastCount   = 0
	offSlowCount   = 4
	offGPCounter   = 8
	offAccTime     = 12
	offLiveTime    = 16
	offRealTime    = 20
	offFirmware    = 24
	offFPGA        = 25
	offSerial      = 26
	offFlags1      = 35
	offFlags2      = 36
	offBuild       = 37
	offPC5         = 38
	offDeviceID    = 39
	offDPPECO      = 49
	accTimeFactor  = 100
	buildMinFW     = 0x65
	dmcaLiveMinFW  = 0x67
	serialSignFlag = 0x80
)

// DecodeStatus decodes a status block. raw must hold at least MinStatusSize bytes;
// bytes past MinStatusSize are ignored.
func DecodeStatus(raw []byte) (*Status, error) {
	if len(raw) < MinStatusSize {
		return nil, &ShortBufferError{What: "status block", Got: len(raw), Need: MinStatusSize}
	}

	s := &Status{
		FastCount:        binary.LittleEndian.Uint32(raw[offFastCount:]),
		SlowCount:        binary.LittleEndian.Uint32(raw[offSlowCount:]),
		GPCounter:        binary.LittleEndian.Uint32(raw[offGPCounter:]),
		AccumulationTime: uint32(raw[offAccTime]) + uint24(raw[offAccTime+1:])*accTimeFactor,
		RealTime:         binary.LittleEndian.Uint32(raw[offRealTime:]),
		Firmware:         raw[offFirmware],
		FPGA:             raw[offFPGA],
		DeviceID:         DeviceType(raw[offDeviceID]),
		SerialNumber:     NoSerialNumber,
		DPPECO:           raw[offDPPECO],
	}

	if s.Firmware > buildMinFW {
		s.Build = raw[offBuild] & 0x0F
	}

	s.DMCALiveTime = s.DeviceID == DeviceMCA8000D && s.Firmware >= dmcaLiveMinFW
	if s.DMCALiveTime {
		s.LiveTime = binary.LittleEndian.Uint32(raw[offLiveTime:])
	}

	if raw[offSerial+3] < serialSignFlag {
		s.SerialNumber = int64(binary.LittleEndian.Uint32(raw[offSerial:]))
	}

	f1 := raw[offFlags1]
	s.PresetRealTimeDone = f1&0x80 != 0
	// Bit 6 means preset live time done on DMCA live time devices
	if s.DMCALiveTime {
		s.PresetLiveTimeDone = f1&0x40 != 0
	} else {
		s.AFastLocked = f1&0x40 != 0
	}
	s.MCAEnabled = f1&0x20 != 0
	s.PresetCountReached = f1&0x10 != 0
	s.ScopeDataReady = f1&0x04 != 0
	s.DP5Configured = f1&0x02 != 0

	f2 := raw[offFlags2]
	s.AOffsetLocked = f2&0x80 != 0
	s.MCSDone = f2&0x40 != 0
	s.Clock80MHz = f2&0x02 != 0
	s.FPGAAutoClock = f2&0x01 != 0

	pc5 := raw[offPC5]
	s.PC5Present = pc5&0x80 != 0
	if s.PC5Present {
		s.PC5HVPositive = pc5&0x40 != 0
		s.PC5Supply8_5V = pc5&0x20 != 0
	}

	return s, nil
}

// Encode renders the status as a StatusBlockSize block that DecodeStatus
// maps back to the same record. DMCALiveTime is derived from DeviceID and
// Firmware and is not encoded.
func (s *Status) Encode() []byte {
	raw := make([]byte, StatusBlockSize)
	binary.LittleEndian.PutUint32(raw[offFastCount:], s.FastCount)
	binary.LittleEndian.PutUint32(raw[offSlowCount:], s.SlowCount)
	binary.LittleEndian.PutUint32(raw[offGPCounter:], s.GPCounter)

	raw[offAccTime] = byte(s.AccumulationTime % accTimeFactor)
	putUint24(raw[offAccTime+1:], s.AccumulationTime/accTimeFactor)

	binary.LittleEndian.PutUint32(raw[offLiveTime:], s.LiveTime)
	binary.LittleEndian.PutUint32(raw[offRealTime:], s.RealTime)
	raw[offFirmware] = s.Firmware
	raw[offFPGA] = s.FPGA

	if s.SerialNumber >= 0 {
		binary.LittleEndian.PutUint32(raw[offSerial:], uint32(s.SerialNumber))
	} else {
		raw[offSerial+3] = serialSignFlag
	}

	dmca := s.DeviceID == DeviceMCA8000D && s.Firmware >= dmcaLiveMinFW
	raw[offFlags1] = bit(s.PresetRealTimeDone, 0x80) |
		bit(dmca && s.PresetLiveTimeDone || !dmca && s.AFastLocked, 0x40) |
		bit(s.MCAEnabled, 0x20) |
		bit(s.PresetCountReached, 0x10) |
		bit(s.ScopeDataReady, 0x04) |
		bit(s.DP5Configured, 0x02)
	raw[offFlags2] = bit(s.AOffsetLocked, 0x80) |
		bit(s.MCSDone, 0x40) |
		bit(s.Clock80MHz, 0x02) |
		bit(s.FPGAAutoClock, 0x01)
	raw[offBuild] = s.Build & 0x0F
	raw[offPC5] = bit(s.PC5Present, 0x80) |
		bit(s.PC5Present && s.PC5HVPositive, 0x40) |
		bit(s.PC5Present && s.PC5Supply8_5V, 0x20)
	raw[offDeviceID] = byte(s.DeviceID)
	raw[offDPPECO] = s.DPPECO

	return raw
}

// HasSerialNumber reports whether the device reported a serial number.
func (s *Status) HasSerialNumber() bool {
	return s.SerialNumber != NoSerialNumber
}

// FirmwareVersion formats the firmware byte as major.minor, with the build
// number appended when the firmware reports one.
func (s *Status) FirmwareVersion() string {
	v := fmt.Sprintf("%d.%02d", s.Firmware>>4, s.Firmware&0x0F)
	if s.Firmware > buildMinFW {
		v += fmt.Sprintf(" build %d", s.Build)
	}
	return v
}

// FPGAVersion formats the FPGA byte as major.minor.
func (s *Status) FPGAVersion() string {
	return fmt.Sprintf("%d.%02d", s.FPGA>>4, s.FPGA&0x0F)
}

// RealTimeDuration returns RealTime as a time.Duration.
func (s *Status) RealTimeDuration() time.Duration {
	return time.Duration(s.RealTime) * time.Millisecond
}

// LiveTimeDuration returns LiveTime as a time.Duration.
func (s *Status) LiveTimeDuration() time.Duration {
	return time.Duration(s.LiveTime) * time.Millisecond
}

// AccumulationDuration returns AccumulationTime as a time.Duration.
func (s *Status) AccumulationDuration() time.Duration {
	return time.Duration(s.AccumulationTime) * time.Millisecond
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func bit(set bool, mask byte) byte {
	if set {
		return mask
	}
	return 0
}
