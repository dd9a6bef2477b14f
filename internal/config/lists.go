package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/beekhof/reconcile-tools/internal/snapshot"
)

// ErrNoKeywords is returned when the keyword file holds no usable entries.
var ErrNoKeywords = errors.New("keyword file is empty")

func readRequired(path, what string) ([]string, error) {
	lines, err := snapshot.ReadLines(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s file '%s' found", ErrConfigMissing, what, path)
		}
		return nil, err
	}
	return lines, nil
}

// LoadKeywords reads one keyword per line, lowercased. A missing or empty file is an error.
func LoadKeywords(path string) ([]string, error) {
	lines, err := readRequired(path, "keywords")
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeywords, path)
	}

	keywords := make([]string, len(lines))
	for i, line := range lines {
		keywords[i] = strings.ToLower(line)
	}
	return snapshot.Unique(keywords), nil
}

// LoadExclusions reads the usernames exempted from the follow-back report.
func LoadExclusions(path string) ([]string, error) {
	lines, err := readRequired(path, "exclusions")
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, "@")
	}
	return lines, nil
}

// LoadTargetIDs reads the saved identifier list, dropping duplicates.
func LoadTargetIDs(path string) ([]string, error) {
	lines, err := readRequired(path, "target id")
	if err != nil {
		return nil, err
	}
	return snapshot.Unique(lines), nil
}

// SaveTargetIDs writes the identifier list, dropping duplicates.
func SaveTargetIDs(path string, ids []string) error {
	return snapshot.WriteLines(path, snapshot.Unique(ids))
}
