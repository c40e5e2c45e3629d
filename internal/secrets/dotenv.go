package secrets

import (
	"fmt"
	"os"
	"strings"
)

// SetEntry writes or updates a KEY=VALUE line in a .env file, keeping
// comments, ordering and blank lines intact. An existing key is replaced
// in place; a new one is appended.
func SetEntry(path, key, value string) error {
	var lines []string
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if trimmed := strings.TrimRight(string(data), "\n"); trimmed != "" {
			lines = strings.Split(trimmed, "\n")
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read dotenv: %w", err)
	}

	entry := key + "=" + quoteValue(value)
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		k, _, ok := strings.Cut(trimmed, "=")
		if ok && strings.TrimSpace(k) == key {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

// quoteValue wraps values containing whitespace or shell-significant
// characters in escaped double quotes.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, " \t\"'\\#$") {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
