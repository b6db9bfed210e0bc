// Package dotenv parses and serializes the .env text format, and owns the
// variable-key normalization rules shared by the server store and the
// terminal client.
package dotenv

import (
	"regexp"
	"sort"
	"strings"
)

// keyPattern is what a stored variable key must match after normalization.
var keyPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// secretPattern flags key names that probably hold sensitive values. The
// classification is informational only; matching keys are never rejected.
var secretPattern = regexp.MustCompile(`(?i)SECRET|PASSWORD|TOKEN|KEY|AUTH|CREDENTIAL|PRIVATE`)

// Entry is a single key/value pair in file order.
type Entry struct {
	Key   string
	Value string
}

// NormalizeKey uppercases the key. Normalization is idempotent: the result
// either passes ValidKey or the key was never acceptable.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidKey reports whether a normalized key matches ^[A-Z0-9_]+$.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// LooksSecret reports whether the key name matches the secret heuristic.
func LooksSecret(key string) bool {
	return secretPattern.MatchString(key)
}

// Parse extracts key/value pairs from raw dotenv text.
//
// Blank lines and lines starting with '#' are skipped. A line qualifies only
// if it contains '='; the split happens on the first '=' so values may
// contain further '=' characters. One matching pair of surrounding single or
// double quotes is stripped from the value. Keys are normalized; a duplicate
// key keeps its last occurrence.
func Parse(text string) []Entry {
	var (
		order []string
		vals  = make(map[string]string)
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := NormalizeKey(line[:eq])
		if key == "" {
			continue
		}
		value := unquote(strings.TrimSpace(line[eq+1:]))
		if _, seen := vals[key]; !seen {
			order = append(order, key)
		}
		vals[key] = value
	}

	entries := make([]Entry, 0, len(order))
	for _, k := range order {
		entries = append(entries, Entry{Key: k, Value: vals[k]})
	}
	return entries
}

// ParseMap is Parse with the result flattened to a map.
func ParseMap(text string) map[string]string {
	m := make(map[string]string)
	for _, e := range Parse(text) {
		m[e.Key] = e.Value
	}
	return m
}

// Serialize renders KEY=value lines sorted by key, newline-joined, with a
// trailing newline when the map is non-empty.
func Serialize(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(vars[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
