// Package logger provides log output helpers, including a masking writer that
// keeps tokens and full client addresses out of the log stream.
package logger

import (
	"io"
	"regexp"
)

type pattern struct {
	re          *regexp.Regexp
	replacement []byte
	expand      bool // replacement references capture groups
}

var secretPatterns = []pattern{
	// Bearer tokens in Authorization headers or log fields.
	{re: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`), replacement: []byte("bearer [REDACTED]")},
	// MaxMind license keys passed through URLs.
	{re: regexp.MustCompile(`(?i)license_key=[A-Za-z0-9_]+`), replacement: []byte("license_key=[REDACTED]")},
}

// ipv4LastOctet keeps the /24 network and zeroes the host part.
var ipv4LastOctet = pattern{
	re: regexp.MustCompile(`\b((?:25[0-5]|2[0-4]\d|1?\d?\d)\.(?:25[0-5]|2[0-4]\d|1?\d?\d)\.(?:25[0-5]|2[0-4]\d|1?\d?\d))\.(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
	replacement: []byte("${1}.0"),
	expand:      true,
}

type RedactWriter struct {
	w        io.Writer
	patterns []pattern
}

// NewRedactWriter masks secrets in everything written to w. When anonymizeIPs
// is set, IPv4 addresses are also truncated to their /24.
func NewRedactWriter(w io.Writer, anonymizeIPs bool) *RedactWriter {
	pats := append([]pattern{}, secretPatterns...)
	if anonymizeIPs {
		pats = append(pats, ipv4LastOctet)
	}
	return &RedactWriter{w: w, patterns: pats}
}

func (r *RedactWriter) Write(p []byte) (int, error) {
	out := p
	for _, pat := range r.patterns {
		if pat.expand {
			out = pat.re.ReplaceAll(out, pat.replacement)
			continue
		}
		out = pat.re.ReplaceAllLiteral(out, pat.replacement)
	}
	_, err := r.w.Write(out)
	return len(p), err
}
