// Package sqltext loads SQL from files and strips line comments so that
// multi-statement batches can be handed to the driver in one call.
package sqltext

import (
	"fmt"
	"os"
	"strings"
)

// lineComment is the SQL single-line comment marker.
const lineComment = "--"

// StripLineComments removes "--" comments from sql. A comment runs from the
// marker to the end of its line; lines that become empty are dropped. The
// marker is not recognized inside quoted literals.
func StripLineComments(sql string) string {
	lines := strings.Split(sql, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if idx := commentIndex(line); idx >= 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// commentIndex returns the index of the first comment marker outside a
// quoted literal, or -1.
func commentIndex(line string) int {
	var inQuote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '-' && strings.HasPrefix(line[i:], lineComment):
			return i
		}
	}
	return -1
}

// FromFile reads the SQL file at path and returns its contents with line
// comments stripped.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read sql file %s: %w", path, err)
	}
	return StripLineComments(string(data)), nil
}

// IsFile reports whether path names an existing regular file. Used to
// disambiguate inline SQL text from a path to a SQL file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
