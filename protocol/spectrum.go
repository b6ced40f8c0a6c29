package protocol

import (
	"fmt"
	"sort"
)

// spectrumMaxChannel maps a device size code to the highest zero-indexed channel.
// Odd codes carry the spectrum alone, even codes append a status block.
var spectrumMaxChannel = map[byte]int{
	1:  255,
	2:  255,
	3:  511,
	4:  511,
	5:  1023,
	6:  1023,
	7:  2047,
	8:  2047,
	9:  4095,
	10: 4095,
	11: 8191,
	12: 8191,
}

// Spectrum holds one count per channel in channel order.
type Spectrum []uint32

// MaxChannel returns the highest zero-indexed channel for a size code.
func MaxChannel(sizeCode byte) (int, error) {
	maxChan, ok := spectrumMaxChannel[sizeCode]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSizeCode, sizeCode)
	}
	return maxChan, nil
}

// SizeCode returns the size code the device uses for a spectrum of the given
// channel count, with or without a trailing status block.
func SizeCode(channels int, includeStatus bool) (byte, error) {
	codes := make([]int, 0, len(spectrumMaxChannel))
	for code := range spectrumMaxChannel {
		codes = append(codes, int(code))
	}
	sort.Ints(codes)

	for _, code := range codes {
		if spectrumMaxChannel[byte(code)]+1 != channels {
			continue
		}
		// Even codes carry status
		if (code%2 == 0) == includeStatus {
			return byte(code), nil
		}
	}
	return 0, fmt.Errorf("%w: no size code for %d channels", ErrInvalidArgument, channels)
}

// DecodeSpectrum decodes a spectrum payload.
//
// Payload format:
//
//	[CH0(3)][CH1(3)]...[CHn(3)][STATUS(64), optional]
//
// Each channel is little-endian: b0 + b1*256 + b2*65536. When includeStatus is
// set, the trailing StatusBlockSize bytes are decoded as a status block.
func DecodeSpectrum(payload []byte, sizeCode byte, includeStatus bool) (Spectrum, *Status, error) {
	maxChan, err := MaxChannel(sizeCode)
	if err != nil {
		return nil, nil, err
	}

	channels := maxChan + 1
	need := channels * BytesPerChannel
	if includeStatus {
		need += StatusBlockSize
	}
	if len(payload) < need {
		return nil, nil, &ShortBufferError{What: "spectrum payload", Got: len(payload), Need: need}
	}

	spectrum := make(Spectrum, channels)
	for i := range spectrum {
		spectrum[i] = uint24(payload[i*BytesPerChannel:])
	}

	var status *Status
	if includeStatus {
		status, err = DecodeStatus(payload[len(payload)-StatusBlockSize:])
		if err != nil {
			return nil, nil, fmt.Errorf("spectrum status: %w", err)
		}
	}

	return spectrum, status, nil
}

// Encode packs the spectrum into 3-byte channels. Counts above
// MaxChannelValue are saturated.
func (s Spectrum) Encode() []byte {
	out := make([]byte, len(s)*BytesPerChannel)
	for i, v := range s {
		if v > MaxChannelValue {
			v = MaxChannelValue
		}
		putUint24(out[i*BytesPerChannel:], v)
	}
	return out
}

// Total returns the sum of all channel counts.
func (s Spectrum) Total() uint64 {
	var total uint64
	for _, v := range s {
		total += uint64(v)
	}
	return total
}

// Peak returns the channel with the highest count and that count.
// Ties resolve to the lowest channel. An empty spectrum returns -1, 0.
func (s Spectrum) Peak() (channel int, count uint32) {
	channel = -1
	for i, v := range s {
		if channel < 0 || v > count {
			channel, count = i, v
		}
	}
	return channel, count
}
