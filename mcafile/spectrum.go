package mcafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/moffa90/go-mca8000d/protocol"
)

// DefaultSpectrumCapacity is the initial capacity used when reading a spectrum
const DefaultSpectrumCapacity = 1024

// WriteSpectrum writes s to path, one channel per line.
//
// Example:
//
//	err := mcafile.WriteSpectrum("demo.dat", spectrum)
func WriteSpectrum(path string, s protocol.Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteSpectrumTo(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteSpectrumTo writes s to w, one decimal count per line.
func WriteSpectrumTo(w io.Writer, s protocol.Spectrum) error {
	bw := bufio.NewWriter(w)
	for _, count := range s {
		bw.WriteString(strconv.FormatUint(uint64(count), 10))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write spectrum: %w", err)
	}
	return nil
}

// ReadSpectrum reads a spectrum file from the given path.
func ReadSpectrum(path string) (protocol.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadSpectrumFrom(f)
}

// ReadSpectrumFrom reads a spectrum from any io.Reader. Blank lines are
// skipped; counts above protocol.MaxChannelValue are rejected.
func ReadSpectrumFrom(r io.Reader) (protocol.Spectrum, error) {
	s := make(protocol.Spectrum, 0, DefaultSpectrumCapacity)
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		count, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid count %q: %w", lineNum, line, err)
		}
		if count > protocol.MaxChannelValue {
			return nil, fmt.Errorf("line %d: count %d exceeds channel maximum %d", lineNum, count, protocol.MaxChannelValue)
		}
		s = append(s, uint32(count))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return s, nil
}
