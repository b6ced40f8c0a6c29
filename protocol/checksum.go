package protocol

// ChecksumMask is the 16-bit mask used in checksum calculations
const ChecksumMask = 0xFFFF

// calculateChecksum computes the 16-bit frame checksum.
// Sum all bytes, keep the low 16 bits, then 2's complement.
//
// The checksum covers SYNC1 through the last payload byte. The arithmetic is
// done in uint16, so a covered sum whose low 16 bits are zero yields 0x0000.
func calculateChecksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	// Return 2's complement: invert and add 1
	return 1 + (ChecksumMask ^ sum)
}
