package protocol

import "testing"

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0x0000, // 1 + 0xFFFF wraps in 16 bits
		},
		{
			name:     "single byte",
			data:     []byte{0x01},
			expected: 0xFFFF,
		},
		{
			name:     "status request header",
			data:     []byte{0xF5, 0xFA, 0x01, 0x01, 0x00, 0x00},
			expected: 0xFE0F, // sum 0x01F1
		},
		{
			name:     "enable MCA header",
			data:     []byte{0xF5, 0xFA, 0xF0, 0x02, 0x00, 0x00},
			expected: 0xFD1F, // sum 0x02E1
		},
		{
			name:     "256 bytes of 0xFF",
			data:     repeat(0xFF, 256),
			expected: 0x0100, // sum 0xFF00
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateChecksum(tt.data)
			if result != tt.expected {
				t.Errorf("calculateChecksum() = 0x%04X, want 0x%04X", result, tt.expected)
			}
		})
	}
}

func TestCalculateChecksumWrapsToZero(t *testing.T) {
	var data []byte
	for i := 0; i < 0x100; i++ {
		data = append(data, 0x00, 0xFF, 0x01)
	}
	// sum = 0x100 * 0x100 = 0x10000
	if got := calculateChecksum(data); got != 0x0000 {
		t.Errorf("calculateChecksum() = 0x%04X, want 0x0000", got)
	}
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func BenchmarkCalculateChecksum(b *testing.B) {
	data := make([]byte, 24640)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calculateChecksum(data)
	}
}
