// Package slug derives URL-safe identifiers from display names.
package slug

import "strings"

// Make lowercases the name, maps runs of non-alphanumeric characters to a
// single hyphen, and trims leading/trailing hyphens. "Acme  Corp!!" and
// "Acme Corp" both produce "acme-corp".
func Make(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
