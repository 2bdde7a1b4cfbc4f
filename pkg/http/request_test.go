package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrFallback(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "203.0.113.7:51234"

	ip := ExtractClientIP(r, nil)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_UntrustedProxyHeadersIgnored(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_TrustedProxyForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.1.2.3:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.1.2.3")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	assert.Equal(t, "198.51.100.9", ip)
}

func TestExtractClientIP_TrustedProxyRealIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.1.2.3:443"
	r.Header.Set("X-Real-IP", "198.51.100.9")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	ip := ExtractClientIP(r, config)
	assert.Equal(t, "198.51.100.9", ip)
}
