package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/eventgateway/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.10:5123", "192.0.2.10"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Real-IP": "198.51.100.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"forwarded leftmost", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:80", "203.0.113.7"},
		{"invalid header skipped", map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "198.51.100.1"}, "10.0.0.1:80", "198.51.100.1"},
		{"unspecified rejected", map[string]string{"X-Real-IP": "0.0.0.0"}, "10.0.0.1:80", "10.0.0.1"},
		{"ipv6", map[string]string{"X-Real-IP": "2001:db8::1"}, "10.0.0.1:80", "2001:db8::1"},
		{"raw remote", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}
