package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReadLines reads a newline-delimited file and returns its trimmed, non-blank lines
// in file order. Read errors wrap the os error, so errors.Is(err, fs.ErrNotExist) works.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	return lines, nil
}

// WriteLines writes one value per line, replacing any existing file.
func WriteLines(path string, lines []string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Unique returns values with duplicates removed, keeping the first occurrence.
func Unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Debug is the on-disk shape of a debug snapshot. It exists for post-hoc
// inspection only; nothing reads it back.
type Debug struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Complete  bool      `json:"complete"`
	Pages     int       `json:"pages"`
	Error     string    `json:"error,omitempty"`
	WrittenAt time.Time `json:"written_at"`
	Items     []string  `json:"items"`
}

// NewDebug creates a Debug snapshot stamped with a fresh run id.
func NewDebug(kind string, items []string) *Debug {
	if items == nil {
		items = []string{}
	}
	return &Debug{
		RunID:     uuid.NewString(),
		Kind:      kind,
		WrittenAt: time.Now().UTC(),
		Items:     items,
	}
}

// WriteDebug writes the snapshot as indented JSON.
func WriteDebug(path string, d *Debug) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal debug snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write debug snapshot: %w", err)
	}

	return nil
}
