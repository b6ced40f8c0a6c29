package mcafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moffa90/go-mca8000d/protocol"
)

var commentMarkers = []string{"#", "--"}

// ParseConfig parses a configuration file from the given path.
//
// Example:
//
//	cfg, err := mcafile.ParseConfig("mca8000d.cfg")
func ParseConfig(path string) (protocol.ConfigMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseConfigReader(f)
}

// ParseConfigReader parses a configuration file from any io.Reader.
func ParseConfigReader(r io.Reader) (protocol.ConfigMap, error) {
	cfg := make(protocol.ConfigMap)
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripComment(scanner.Text())

		for _, token := range strings.Split(line, ";") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			key, value, err := parseEntry(token)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			cfg[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(cfg) == 0 {
		return nil, fmt.Errorf("no configuration entries found")
	}

	return cfg, nil
}

func stripComment(line string) string {
	for _, marker := range commentMarkers {
		if i := strings.Index(line, marker); i >= 0 {
			line = line[:i]
		}
	}
	return line
}

// parseEntry splits "KEY=VALUE" into an upper-case key and its value.
func parseEntry(token string) (string, string, error) {
	key, value, ok := strings.Cut(token, "=")
	if !ok {
		return "", "", fmt.Errorf("missing '=' in %q", token)
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	if key == "" {
		return "", "", fmt.Errorf("empty key in %q", token)
	}
	if value == "" {
		return "", "", fmt.Errorf("empty value for %s", key)
	}
	if strings.Contains(value, "=") {
		return "", "", fmt.Errorf("unexpected '=' in value for %s", key)
	}

	return key, value, nil
}

// WriteConfig writes cfg to path, one command per line.
func WriteConfig(path string, cfg protocol.ConfigMap) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteConfigTo(f, cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteConfigTo writes cfg in the order BuildSetCommand uses, annotating
// known parameters with their description. The output parses back to cfg.
func WriteConfigTo(w io.Writer, cfg protocol.ConfigMap) error {
	bw := bufio.NewWriter(w)
	for _, cmd := range strings.SplitAfter(protocol.BuildSetCommand(cfg), ";") {
		if cmd == "" {
			continue
		}
		key, _, _ := strings.Cut(cmd, "=")
		line := cmd
		if desc, ok := protocol.Describe(key); ok {
			line = fmt.Sprintf("%-16s # %s", cmd, desc)
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
