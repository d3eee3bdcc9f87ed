package logger

import (
	"bytes"
	"testing"
)

func TestRedactWriter_Write(t *testing.T) {
	tests := []struct {
		name      string
		anonymize bool
		input     string
		expected  string
	}{
		{
			name:     "Redact Bearer Token",
			input:    "Authorization: Bearer my.secret.token",
			expected: "Authorization: bearer [REDACTED]",
		},
		{
			name:     "Redact License Key",
			input:    "GET /geoip_download?edition_id=GeoLite2-Country&license_key=abc123XYZ",
			expected: "GET /geoip_download?edition_id=GeoLite2-Country&license_key=[REDACTED]",
		},
		{
			name:     "IP Kept When Not Anonymizing",
			input:    `{"ip":"203.0.113.42"}`,
			expected: `{"ip":"203.0.113.42"}`,
		},
		{
			name:      "IP Truncated When Anonymizing",
			anonymize: true,
			input:     `{"ip":"203.0.113.42","msg":"bot detected"}`,
			expected:  `{"ip":"203.0.113.0","msg":"bot detected"}`,
		},
		{
			name:      "No Redaction Needed",
			anonymize: true,
			input:     "server listening",
			expected:  "server listening",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rw := NewRedactWriter(&buf, tt.anonymize)

			n, err := rw.Write([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != len(tt.input) {
				t.Errorf("expected length %d, got %d", len(tt.input), n)
			}
			if buf.String() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, buf.String())
			}
		})
	}
}
