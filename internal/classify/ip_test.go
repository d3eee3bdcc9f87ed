package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"169.254.10.10", true},
		{"100.64.0.1", true},
		{"0.1.2.3", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"::ffff:10.0.0.1", true},
		{"203.0.113.42", false},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
		{"garbage", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.ip, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPrivate(tc.ip))
		})
	}
}

func TestParseIP_Zone(t *testing.T) {
	addr, ok := ParseIP("fe80::1%eth0")
	assert.True(t, ok)
	assert.Equal(t, "fe80::1", addr.String())
}
